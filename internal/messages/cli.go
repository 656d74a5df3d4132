package messages

// CLI messages for user-facing commands.
const (
	// RootUse is the CLI command name.
	RootUse   = "shovel"
	RootShort = "Install command-line tools from manifest buckets"
	RootLong  = `shovel installs portable command-line tools described by JSON manifests.

Manifests live in buckets, which are git repositories mirrored under the shovel
root. Installed tools are linked into a versioned app directory and exposed
through shims in a single directory you add to PATH.`
	RootVersionFlag         = "Print version and exit"
	RootFlagConfig          = "Config file (default <user config dir>/shovel/config.toml, or $SHOVEL_CONFIG)"
	RootFlagRoot            = "Shovel root directory (overrides root_dir and $SHOVEL_ROOT)"
	RootFlagVerbose         = "Log debug diagnostics to stderr"
	RootFlagLogFormat       = "Diagnostic log format: text or json"
	RootFlagMetricsFile     = "Write Prometheus metrics to this file after install, update, and uninstall (default <root>/state/metrics.prom)"
	RootFlagNoColor         = "Disable colored output"
	RootLogFormatInvalidFmt = "invalid --log-format %q (want text or json)"

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"
	VersionUse       = "version"
	VersionShort     = "Print the shovel version"

	// InstallUse is the install command usage.
	InstallUse            = "install <app>..."
	InstallShort          = "Install apps and their dependencies"
	InstallLong           = "Install apps by name. Use bucket/app to pick a bucket and app@constraint to pick a version."
	InstallFlagArch       = "Architecture to install: 64bit, 32bit, or arm64 (default native)"
	InstallFlagNoUpdate   = "Do not sync buckets before resolving"
	InstallFlagWorkers    = "Packages prepared concurrently (default from config)"
	InstallFlagReinstall  = "Reinstall requested apps even when the installed version satisfies the request"
	InstallWorkersInvalid = "--workers must be at least 1"

	PlanUse           = "plan <app>..."
	PlanShort         = "Show what install would do without changing anything"
	PlanFlagReinstall = "Plan a reinstall of requested apps that are already installed"

	UninstallUse       = "uninstall <app>..."
	UninstallShort     = "Uninstall apps"
	UninstallFlagPurge = "Also remove persisted data"
	UninstallFlagForce = "Remove the app even when its install record has no manifest snapshot (skips uninstall scripts)"
	UninstallDoneFmt   = "Uninstalled %s %s"
	UninstallFailedFmt = "Failed to uninstall %s: %v"

	UpdateUse             = "update [app]..."
	UpdateShort           = "Sync buckets and upgrade apps"
	UpdateLong            = "With no arguments, sync every bucket. With app names or --all, also upgrade those apps to the newest version in the bucket they came from."
	UpdateFlagAll         = "Upgrade every installed app"
	UpdateFlagDiff        = "Show the manifest diff for each upgrade before installing"
	UpdateArgsWithAll     = "--all cannot be combined with app names"
	UpdateUpToDateFmt     = "%s %s is up to date"
	UpdateMissingFmt      = "%s %s is no longer in any bucket"
	UpdateNotInstalledFmt = "%s is not installed"
	UpdateDiffHeaderFmt   = "Manifest changes for %s %s -> %s:"
	UpdateNoSnapshotFmt   = "%s: no manifest snapshot recorded for %s"
	UpdateDiffFromFmt     = "%s@%s (installed)"
	UpdateDiffToFmt       = "%s@%s (%s)"

	SyncChangedFmt   = "Updated bucket %s (%s -> %s)"
	SyncUnchangedFmt = "Bucket %s is up to date"
	SyncWarningFmt   = "Warning: %v\n"

	ResultInstalledFmt   = "Installed %s %s from %s (%s)"
	ResultUpgradedFmt    = "Upgraded %s %s -> %s from %s (%s)"
	ResultReinstalledFmt = "Reinstalled %s %s from %s (%s)"
	ResultFailedFmt      = "Failed %s %s: %v"
	ResultSatisfiedFmt   = "%s %s is already installed"
	ResultNotesFmt       = "Notes for %s:"
	ResultSuggestFmt     = "%s suggests %s: %s"
	ResultSummaryFmt     = "%d of %d packages failed"

	ProgressStateFmt = "  %s %s: %s\n"

	BucketUse              = "bucket"
	BucketShort            = "Manage buckets"
	BucketAddUse           = "add <name> [remote]"
	BucketAddShort         = "Add a bucket by cloning its git remote"
	BucketAddDoneFmt       = "Added bucket %s from %s at %s"
	BucketRmUse            = "rm <name>"
	BucketRmShort          = "Remove a bucket"
	BucketRmFlagForce      = "Remove the bucket even when installed apps came from it"
	BucketRmDoneFmt        = "Removed bucket %s"
	BucketListUse          = "list"
	BucketListShort        = "List added buckets"
	BucketListHeader       = "NAME\tREMOTE\tREVISION\tADDED"
	BucketListEmpty        = "No buckets added. Run 'shovel bucket known' to see well-known buckets."
	BucketKnownUse         = "known"
	BucketKnownShort       = "List well-known buckets that can be added by name"
	BucketUpdateUse        = "update [name]..."
	BucketUpdateShort      = "Sync buckets with their remotes"
	BucketVerifyUse        = "verify [name]..."
	BucketVerifyShort      = "Check that every manifest in a bucket parses"
	BucketVerifyOKFmt      = "%s: %d manifests OK at %s"
	BucketVerifyBadFmt     = "%s: %d of %d manifests failed at %s"
	BucketVerifyProblemFmt = "  %s: %v"

	SearchUse       = "search [query]"
	SearchShort     = "Fuzzy-search manifest names across buckets"
	SearchNoResults = "No matches."
	SearchResultFmt = "%s (%s) %s"

	InfoUse              = "info <app>"
	InfoShort            = "Show manifest details for an app"
	InfoFlagFormat       = "Output format: text, json, or yaml"
	InfoFormatInvalidFmt = "invalid --format %q (want text, json, or yaml)"
	InfoName             = "Name"
	InfoVersion          = "Version"
	InfoBucket           = "Bucket"
	InfoDescription      = "Description"
	InfoHomepage         = "Homepage"
	InfoLicense          = "License"
	InfoDepends          = "Depends"
	InfoBinaries         = "Binaries"
	InfoArchitectures    = "Architectures"
	InfoInstalled        = "Installed"
	InfoNotes            = "Notes"
	InfoRowFmt           = "%s:\t%s\n"
	InfoEncodeFmt        = "encode info: %w"
	InfoNotInstalled     = "no"
	InfoInstalledAtFmt   = "%s (%s)"

	CatUse   = "cat <app>"
	CatShort = "Print an app's manifest"

	ListUse    = "list"
	ListShort  = "List installed apps"
	ListHeader = "NAME\tVERSION\tBUCKET\tARCH\tINSTALLED"
	ListEmpty  = "No apps installed."

	StatusUse         = "status"
	StatusShort       = "Show installed apps with newer versions available"
	StatusOutdatedFmt = "%s: %s -> %s (%s)"
	StatusMissingFmt  = "%s: %s (no longer in any bucket)"
	StatusUpToDate    = "Everything is up to date."

	CacheUse        = "cache"
	CacheShort      = "Inspect and clean the download cache"
	CacheShowUse    = "show"
	CacheShowShort  = "List cached downloads"
	CacheShowHeader = "HASH\tSIZE\tCACHED"
	CacheShowEmpty  = "The download cache is empty."
	CacheTotalFmt   = "%d files, %s"
	CacheRmUse      = "rm [hash]..."
	CacheRmShort    = "Remove cached downloads by hash"
	CacheRmFlagAll  = "Remove every cached download"
	CacheRmArgs     = "name at least one hash or pass --all"
	CacheRmDoneFmt  = "Removed %d cached files"
	CacheRmHashFmt  = "cache entry %s: %w"
)
