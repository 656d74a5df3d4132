package messages

// Fetch messages for downloads and the artifact cache.
const (
	FetchUnreachableFmt  = "download %s: %v"
	FetchTimeoutFmt      = "download %s: timed out"
	FetchStatusFmt       = "download %s: unexpected status %s"
	FetchTooLargeFmt     = "download %s: response too large (limit %d bytes)"
	FetchHashMismatchFmt = "verify %s: hash mismatch (expected %s, got %s)"
	FetchOfflineFmt      = "download %s: %s not in cache and network access disabled via %s"
	FetchURLParseFmt     = "parse url %s: %w"
	FetchOpenFileFmt     = "open %s: %w"

	FetchDownloadingFmt = "Downloading %s (%s)\n"
	FetchCachedFmt      = "Using cached %s\n"

	CacheCreateDirFmt  = "create cache dir %s: %w"
	CacheCreateTempFmt = "create cache temp file: %w"
	CacheSyncFmt       = "sync cache entry %s: %w"
	CacheCloseFmt      = "close cache entry %s: %w"
	CacheCommitFmt     = "move cache entry %s into place: %w"
	CacheOpenFmt       = "open cache entry %s: %w"
	CacheHashFmt       = "hash cache entry %s: %w"
	CacheRemoveFmt     = "remove cache entry %s: %w"
	CacheListFmt       = "list cache %s: %w"
	CacheEntryCorrupt  = "cached content no longer matches its hash"
)
