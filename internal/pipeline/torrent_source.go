package pipeline

import (
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// looksLikeBencodedTorrent reports whether raw is likely the literal
// bencoded content of a .torrent file rather than a magnet URI or a bare
// HTTP(S) URL pointing at one.
func looksLikeBencodedTorrent(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "magnet:") || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return false
	}
	// Bencoded dictionaries (what a .torrent file's top level always is)
	// start with 'd'.
	return strings.HasPrefix(trimmed, "d")
}

// preParseLocalTorrent decodes raw .torrent bencode locally, before any
// remote submission, purely so the caller can populate a display name
// immediately instead of waiting on the round trip to the remote drive.
func preParseLocalTorrent(raw string) (name string, infoHash string, ok bool) {
	if !looksLikeBencodedTorrent(raw) {
		return "", "", false
	}
	mi, err := metainfo.Load(strings.NewReader(raw))
	if err != nil {
		return "", "", false
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return "", "", false
	}
	return info.Name, mi.HashInfoBytes().HexString(), true
}

// magnetInfoHash extracts the btih info-hash from a magnet URI's xt
// parameter. Ported from the teacher's create-torrent info-hash parser —
// same substring-match approach, generalized from building a domain
// InfoHash value to a plain string used only for diagnostics here.
func magnetInfoHash(magnet string) string {
	magnet = strings.TrimSpace(magnet)
	if magnet == "" {
		return ""
	}
	lower := strings.ToLower(magnet)
	idx := strings.Index(lower, "xt=urn:btih:")
	if idx == -1 {
		return ""
	}
	start := idx + len("xt=urn:btih:")
	rest := magnet[start:]
	if rest == "" {
		return ""
	}
	if end := strings.Index(rest, "&"); end != -1 {
		return rest[:end]
	}
	return rest
}

// magnetDisplayName extracts a magnet URI's dn (display name) parameter,
// if present.
func magnetDisplayName(magnet string) string {
	lower := strings.ToLower(magnet)
	idx := strings.Index(lower, "dn=")
	if idx == -1 {
		return ""
	}
	start := idx + len("dn=")
	rest := magnet[start:]
	if end := strings.Index(rest, "&"); end != -1 {
		rest = rest[:end]
	}
	return rest
}
