// Package flagx holds helpers for layered process configuration: picking a
// component's own flags out of os.Args and overlaying environment variables.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the arguments that belong to the named flags, keeping
// their order.
//
// Names are given without dashes. Both "-name" and "--name" spellings match,
// with the value either attached ("-name=value") or in the next argument.
// Flags listed in boolFlags never consume the next argument.
//
//	FilterArgs([]string{"-a", ":8080", "--debug", "x"}, []string{"a"}, []string{"debug"})
//	// -> ["-a", ":8080", "--debug"]
func FilterArgs(args []string, valueFlags []string, boolFlags []string) []string {
	kinds := make(map[string]bool, len(valueFlags)+len(boolFlags))
	for _, f := range valueFlags {
		kinds[f] = false
	}
	for _, f := range boolFlags {
		kinds[f] = true
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		isBool, ok := kinds[name]
		if !ok {
			continue
		}

		filtered = append(filtered, arg)
		if hasValue || isBool {
			continue
		}

		// the value follows unless the next token is another flag
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the config file path given with -c or -config, or
// "" when neither is present. Other arguments are ignored.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"c", "config"}, nil)

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}
