package messages

// Manifest messages for parsing and validation.
const (
	// ManifestErrorFmt formats a manifest error with its structural path.
	ManifestErrorFmt     = "manifest %s: %s: %s"
	ManifestErrorRootFmt = "manifest %s: %s"

	ManifestNotUTF8         = "manifest is not valid UTF-8"
	ManifestSyntaxFmt       = "invalid JSON: %v"
	ManifestNotObject       = "manifest must be a JSON object"
	ManifestFieldRequired   = "field is required"
	ManifestExpectedString  = "expected a string"
	ManifestExpectedBool    = "expected a boolean"
	ManifestExpectedObject  = "expected an object"
	ManifestExpectedArray   = "expected an array"
	ManifestExpectedList    = "expected a string or an array of strings"
	ManifestExpectedLicense = "expected a license identifier or {identifier, url}"
	ManifestPersistArity    = "persist entry must be [path] or [path, rename]"
	ManifestShimArity       = "shim must be [executable, alias, args...]"
	ManifestShortcutArity   = "shortcut must be [executable, name, (args), (icon)]"
	ManifestScriptNUL       = "script line contains a NUL byte"
	ManifestVersionEmpty    = "version must not be empty"

	ManifestVersionCharFmt     = "version %q contains invalid character %q"
	ManifestEnvKeyInvalidFmt   = "invalid environment variable name %q"
	ManifestHashCountFmt       = "expected one hash per url (%d urls, %d hashes)"
	ManifestHashAlgorithmFmt   = "unsupported hash algorithm %q (supported: sha256, sha512, sha1, md5)"
	ManifestHashLengthFmt      = "%s hash must be %d hex characters (got %d)"
	ManifestHashHexFmt         = "hash %q is not hexadecimal"
	ManifestUnknownArchFmt     = "unknown architecture %q (supported: 64bit, 32bit, arm64)"
	ManifestArchUnsupportedFmt = "%s does not support architecture %s"
	ManifestInvalidNameFmt     = "invalid name %q"
	ManifestDependencyFmt      = "invalid dependency %q: %w"
	ManifestURLParseFmt        = "invalid url %q: %w"
	ManifestURLAbsoluteFmt     = "url %q must be absolute"
	ManifestURLFilenameFmt     = "url %q has no file name"
)
