package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/stratum"
)

var flagStatic bool

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query declarations",
	Long:  "Answer member and override queries. Source queries (lookup, members, package-*) read indexed Java classes; metadata queries (functions, descriptors, describe) read imported bundles.",
}

func init() {
	for _, c := range []*cobra.Command{lookupCmd, membersCmd} {
		c.Flags().BoolVar(&flagStatic, "static", false, "query the static scope instead of the instance scope")
	}

	queryCmd.AddCommand(lookupCmd)
	queryCmd.AddCommand(membersCmd)
	queryCmd.AddCommand(packageLookupCmd)
	queryCmd.AddCommand(packageMembersCmd)
	queryCmd.AddCommand(functionsCmd)
	queryCmd.AddCommand(packageFunctionsCmd)
	queryCmd.AddCommand(descriptorsCmd)
	queryCmd.AddCommand(packageDescriptorsCmd)
	queryCmd.AddCommand(describeCmd)
	queryCmd.AddCommand(classesCmd)
}

// --- Source queries ---

var lookupCmd = &cobra.Command{
	Use:   "lookup <class> <name>",
	Short: "Members declared under one name in an indexed class",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "lookup", func(s *stratum.Session) (any, error) {
			return s.Lookup(args[0], flagStatic, args[1])
		})
	},
}

var membersCmd = &cobra.Command{
	Use:   "members <class>",
	Short: "All names declared in an indexed class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "members", func(s *stratum.Session) (any, error) {
			return s.Members(args[0], flagStatic)
		})
	},
}

var packageLookupCmd = &cobra.Command{
	Use:   "package-lookup <package> <name>",
	Short: "Members declared under one name in an indexed package, file facades included",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "package-lookup", func(s *stratum.Session) (any, error) {
			return s.PackageLookup(args[0], args[1])
		})
	},
}

var packageMembersCmd = &cobra.Command{
	Use:   "package-members <package>",
	Short: "All names declared in an indexed package, file facades included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "package-members", func(s *stratum.Session) (any, error) {
			return s.PackageMembers(args[0])
		})
	},
}

var classesCmd = &cobra.Command{
	Use:   "classes [package]",
	Short: "Indexed packages, or the classes of one package",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openExisting()
		if err != nil {
			return outputError("classes", err)
		}
		defer engine.Close()

		var names []string
		if len(args) == 0 {
			names, err = engine.Packages()
		} else {
			names, err = engine.Classes(args[0])
		}
		if err != nil {
			return outputError("classes", err)
		}
		return outputResult(cmd, CLIResult{Command: "classes", Results: CLINames(names)})
	},
}

// --- Metadata queries ---

var functionsCmd = &cobra.Command{
	Use:   "functions <class> <name>",
	Short: "Functions of an imported class, inherited fake overrides included",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "functions", func(s *stratum.Session) (any, error) {
			return s.Functions(args[0], args[1])
		})
	},
}

var packageFunctionsCmd = &cobra.Command{
	Use:   "package-functions <package> <name>",
	Short: "Top-level functions of an imported package fragment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "package-functions", func(s *stratum.Session) (any, error) {
			return s.PackageFunctions(args[0], args[1])
		})
	},
}

var descriptorsCmd = &cobra.Command{
	Use:   "descriptors <class>",
	Short: "Every declaration in the scope of an imported class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "descriptors", func(s *stratum.Session) (any, error) {
			return s.ClassDescriptors(args[0])
		})
	},
}

var packageDescriptorsCmd = &cobra.Command{
	Use:   "package-descriptors <package>",
	Short: "Every declaration of an imported package fragment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "package-descriptors", func(s *stratum.Session) (any, error) {
			return s.PackageDescriptors(args[0])
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <class>",
	Short: "Kind, type parameters, supertypes and members of an imported class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionQuery(cmd, "describe", func(s *stratum.Session) (any, error) {
			return s.DescribeClass(args[0])
		})
	},
}

// --- Helpers ---

// runSessionQuery opens the database, runs fn in a fresh session and
// writes its result along with any override conflicts it met.
func runSessionQuery(cmd *cobra.Command, command string, fn func(*stratum.Session) (any, error)) error {
	engine, err := openExisting()
	if err != nil {
		return outputError(command, err)
	}
	defer engine.Close()

	s := engine.NewSession()
	result, err := fn(s)
	if err != nil {
		return outputError(command, err)
	}
	return outputResult(cmd, CLIResult{
		Command:   command,
		Results:   normalizeNil(result),
		Conflicts: s.Conflicts(),
	})
}

// normalizeNil turns a typed nil result into an untyped one so it encodes
// as null and prints nothing in text mode.
func normalizeNil(v any) any {
	if m, ok := v.(*stratum.MemberInfo); ok && m == nil {
		return nil
	}
	return v
}
