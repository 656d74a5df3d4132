package messages

// Bucket messages for the registry store.
const (
	BucketErrorFmt          = "bucket %s: %s"
	BucketAnyErrorFmt       = "buckets: %s"
	BucketGitHeadFmt        = "resolve HEAD: %w"
	BucketGitRemoteRefFmt   = "resolve remote branch %s: %w"
	BucketGitFileMissingFmt = "file %s: %w"
	BucketGitDirMissingFmt  = "directory %s: %w"

	BucketNameReservedFmt      = "name %q is reserved"
	BucketRemoteRequiredFmt    = "no remote given and %q is not a known bucket"
	BucketDirExistsFmt         = "directory %s already exists"
	BucketCloneFmt             = "clone %s"
	BucketFetchFmt             = "fetch %s"
	BucketNotFastForwardFmt    = "remote revision %s does not descend from pinned revision %s"
	BucketCheckoutFmt          = "checkout %s"
	BucketInstalledPackagesFmt = "packages still installed from it: %s (use force to remove anyway)"
	BucketUsageCheck           = "check installed packages"
	BucketNoManifestsFmt       = "no manifests found in %s"
	BucketPackageNotFoundFmt   = "package %q"
	BucketManifestFmt          = "bucket %s: %w"
	BucketManifestReadFmt      = "bucket %s: read %s: %w"

	BucketRegistryReadFmt   = "read bucket registry %s: %w"
	BucketRegistryParseFmt  = "parse bucket registry %s: %w"
	BucketRegistryEncodeFmt = "encode bucket registry: %w"
	BucketRegistryWriteFmt  = "write bucket registry %s: %w"
	BucketCreateDirFmt      = "create bucket dir %s: %w"
	BucketMoveFmt           = "move %s into place: %w"
	BucketRemoveDirFmt      = "remove bucket dir %s: %w"
)
