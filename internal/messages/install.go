package messages

// Install engine messages.
const (
	InstallErrorFmt            = "%s (%s): %v"
	InstallNotInstalledFmt     = "%s is not installed"
	InstallBadTransitionFmt    = "package %s: illegal state transition %s -> %s"
	InstallNoCompatibleArchFmt = "package %s has no download for architectures %v"
	InstallDependencyFailedFmt = "dependency %s failed to install"
	InstallBinMissingFmt       = "bin %s not found in package: %w"
	InstallInstallerMissingFmt = "installer %s not found in package: %w"
	InstallSnapshotMissingFmt  = "install record for %s has no manifest snapshot"
	InstallDirOutsideFmt       = "refusing to remove %s: not under %s"

	InstallRecordDirFmt    = "create records dir %s: %w"
	InstallRecordReadFmt   = "read install record %s: %w"
	InstallRecordDecodeFmt = "decode install record %s: %w"
	InstallRecordNameFmt   = "install record %s names package %q"
	InstallRecordListFmt   = "list install records in %s: %w"
	InstallRecordEncodeFmt = "encode install record %s: %w"
	InstallRecordWriteFmt  = "write install record %s: %w"
	InstallRecordRemoveFmt = "remove install record %s: %w"

	InstallCreateDirFmt           = "create directory %s: %w"
	InstallOpenArtifactFmt        = "open artifact %s: %w"
	InstallArchiveFmt             = "read archive %s: %w"
	InstallArchiveEntryFmt        = "extract %s: %w"
	InstallArchiveTooManyFmt      = "archive has more than %d entries"
	InstallArchiveTooLargeFmt     = "archive expands to more than %d bytes"
	InstallArchiveLinkEscapesFmt  = "archive link %s -> %s points outside the package"
	InstallArchiveEntryEscapesFmt = "archive entry %s resolves outside the package"
	InstallArchiveHardlinkFmt     = "archive hard link %s -> %s does not name a regular file"
	InstallWriteFileFmt           = "write %s: %w"
	InstallExtractDirFmt          = "extract_dir %s: %w"
	InstallNotADirectory          = "not a directory"
	InstallRemoveFmt              = "remove %s: %w"
	InstallMoveFmt                = "move %s to %s: %w"
	InstallStatFmt                = "stat %s: %w"
	InstallLinkFmt                = "link %s to %s: %w"
	InstallReadFileFmt            = "read %s: %w"

	InstallShimForeignFmt = "shim %s exists and was not created by shovel"
	InstallShimOwnedFmt   = "shim %s belongs to package %s"
	InstallWriteShimFmt   = "write shim %s: %w"

	InstallActivationParseFmt = "parse activation env %s: %w"
	InstallActivationWriteFmt = "write activation file %s: %w"
)
