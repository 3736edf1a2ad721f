// Package config loads the layered outliers configuration.
//
// Configuration is given as an ordered list of INI files, typically one
// `--config` flag per file. Files are overlaid in that order: for the same
// (section, option) the value from the later file wins.
//
// # Configuration Structure
//
// The sections consumed by the settings layer are:
//
//	[general]
//	es_save_results = true            # required
//	print_outliers_to_console = false # optional, default false
//
//	[daemon]
//	schedule = 0 * * * *              # optional, default @hourly
//
//	[whitelist_literals]
//	any_name = value one, value two   # all members must match
//
//	[whitelist_regexps]
//	any_name = ^.*apples$, ^pears     # any pattern may match
//
//	[derivedfields]
//	[assets]
//
// # Basic Usage
//
//	loader := config.New()
//	tree, err := loader.Load([]string{"/etc/outliers/base.conf", "/etc/outliers/site.conf"})
//	if err != nil {
//		fmt.Fprint(os.Stderr, err)
//		os.Exit(config.ExitCode)
//	}
//
// # Error Handling
//
// Load never stops at the first bad path. Every path that cannot be opened
// or parsed is collected into a single *UnreadableError so the user can fix
// all of them in one go. Callers terminate with ExitCode.
//
// Load tolerates an option repeated inside one section (the last value
// wins). ValidateNoDuplicates is a separate, purely diagnostic pass that
// re-parses the same files strictly and returns the first
// *ini.DuplicateSectionError or *ini.DuplicateOptionError.
package config
