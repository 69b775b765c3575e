// Package envy automatically exposes environment
// variables for all of your flags.
package envy

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Parse takes a prefix string and exposes environment variables
// for all flags in the default FlagSet (flag.CommandLine) in the
// form of PREFIX_FLAGNAME.
func Parse(p string) {
	update(p, flag.CommandLine, os.LookupEnv)
}

// ParseFlagSet is like Parse, but for the flags of fs.
func ParseFlagSet(p string, fs *flag.FlagSet) {
	update(p, fs, os.LookupEnv)
}

// VarName returns the environment variable that sets flag name.
func VarName(p, name string) string {
	return strings.ReplaceAll(strings.ToUpper(p+"_"+name), "-", "_")
}

// update takes a prefix string p and *flag.FlagSet. Each flag
// in the FlagSet is exposed as an upper case environment variable
// prefixed with p. Any flag that was not explicitly set by a user
// is updated to the environment variable, if set.
func update(p string, fs *flag.FlagSet, lookup func(string) (string, bool)) {
	// Build a map of explicitly set flags.
	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = struct{}{}
	})

	fs.VisitAll(func(f *flag.Flag) {
		envVar := VarName(p, f.Name)

		// Update the value if it hasn't
		// already been set.
		if val, ok := lookup(envVar); ok && val != "" {
			if _, defined := set[f.Name]; !defined {
				fs.Set(f.Name, val)
			}
		}

		// Append the env var to the
		// Flag.Usage field.
		f.Usage = fmt.Sprintf("%s [%s]", f.Usage, envVar)
	})
}
