package cli

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs cmd on args. Negative numbers in args are always positional,
// so `groupbanker add -3.2 refund` records a refund instead of failing on an
// unknown shorthand flag.
func Execute(cmd *cobra.Command, args []string) error {
	cmd.SetArgs(escapeNegativeNumbers(cmd, args))
	return cmd.Execute()
}

// escapeNegativeNumbers moves positional arguments behind a "--" terminator
// when one of them is a negative number. Subcommand names stay in front of
// the terminator so cobra can still find the command.
func escapeNegativeNumbers(root *cobra.Command, args []string) []string {
	if slices.Contains(args, "--") || !slices.ContainsFunc(args, isNegativeNumber) {
		return args
	}

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if isNegativeNumber(a) || !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if takesValue(root, a) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	var path []string
	for cmd := root; len(positional) > 0; {
		sub := subcommand(cmd, positional[0])
		if sub == nil {
			break
		}
		path = append(path, positional[0])
		positional = positional[1:]
		cmd = sub
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, path...)
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, positional...)
}

func isNegativeNumber(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || slices.Contains(sub.Aliases, name) {
			return sub
		}
	}
	return nil
}

// takesValue reports whether flag arg consumes the following argument.
// Flags are looked up across the whole command tree.
func takesValue(root *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	var f *pflag.Flag
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		f = lookupFlag(root, func(fs *pflag.FlagSet) *pflag.Flag { return fs.Lookup(name) })
	} else {
		// Only the last shorthand in a group like -vx can take a value.
		short := arg[len(arg)-1:]
		f = lookupFlag(root, func(fs *pflag.FlagSet) *pflag.Flag { return fs.ShorthandLookup(short) })
	}
	// Bool flags carry a NoOptDefVal and never consume the next argument.
	return f != nil && f.NoOptDefVal == ""
}

func lookupFlag(cmd *cobra.Command, lookup func(*pflag.FlagSet) *pflag.Flag) *pflag.Flag {
	if f := lookup(cmd.PersistentFlags()); f != nil {
		return f
	}
	if f := lookup(cmd.Flags()); f != nil {
		return f
	}
	for _, sub := range cmd.Commands() {
		if f := lookupFlag(sub, lookup); f != nil {
			return f
		}
	}
	return nil
}
