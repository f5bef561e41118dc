package viewdata

import "strings"

// Wire-key abbreviation. Every underscore-separated token of a field
// key is replaced by its code from the table below; unknown tokens
// pass through unchanged. The mapping is bijective (codes are unique
// and no dictionary word is reused as another word's code), so the
// collector reverses it with ExpandKey.
//
// Example: view_watch_time -> x_wt_ti, player_error_code -> p_er_cd.
var wordCodes = map[string]string{
	// prefixes
	"view":    "x",
	"player":  "p",
	"video":   "v",
	"viewer":  "u",
	"session": "s",
	"page":    "g",
	"env":     "n",
	"event":   "e",
	"ad":      "a",
	"beacon":  "b",

	// words
	"id":         "id",
	"sequence":   "sq",
	"number":     "no",
	"start":      "st",
	"end":        "en",
	"errored":    "eo",
	"watch":      "wt",
	"time":       "ti",
	"content":    "cn",
	"playback":   "pk",
	"max":        "mx",
	"min":        "mn",
	"playhead":   "ph",
	"position":   "po",
	"to":         "to",
	"first":      "f1",
	"frame":      "fm",
	"aggregate":  "ag",
	"startup":    "su",
	"rebuffer":   "rb",
	"count":      "ct",
	"duration":   "du",
	"frequency":  "fq",
	"percentage": "pc",
	"seek":       "sk",
	"seeking":    "sg",
	"request":    "rq",
	"requested":  "rd",
	"failed":     "fa",
	"canceled":   "cc",
	"bytes":      "by",
	"loaded":     "lo",
	"latency":    "la",
	"average":    "av",
	"throughput": "tp",
	"response":   "rs",
	"played":     "pd",
	"skip":       "sp",
	"click":      "ck",
	"error":      "er",
	"preroll":    "pe",
	"load":       "ld",
	"play":       "py",
	"init":       "in",
	"is":         "is",
	"paused":     "pz",
	"rate":       "ra",
	"software":   "sw",
	"name":       "nm",
	"version":    "vn",
	"code":       "cd",
	"message":    "ms",
	"context":    "cx",
	"severity":   "sv",
	"business":   "bz",
	"exception":  "xc",
	"source":     "so",
	"width":      "wd",
	"height":     "ht",
	"bitrate":    "br",
	"domain":     "dm",
	"creative":   "cv",
	"universe":   "uv",
	"sample":     "sa",
	"expires":    "xp",
	"url":        "ur",
	"connection": "co",
	"type":       "ty",
	"key":        "ky",
	"rtt":        "rt",
	"hostname":   "hn",
	"headers":    "hd",
}

var codeWords = func() map[string]string {
	m := make(map[string]string, len(wordCodes))
	for w, c := range wordCodes {
		m[c] = w
	}
	return m
}()

// ShortenKey abbreviates one field key for the wire.
func ShortenKey(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if c, ok := wordCodes[p]; ok {
			parts[i] = c
		}
	}
	return strings.Join(parts, "_")
}

// ExpandKey reverses ShortenKey.
func ExpandKey(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if w, ok := codeWords[p]; ok {
			parts[i] = w
		}
	}
	return strings.Join(parts, "_")
}

// ShortenFields abbreviates every key of a beacon snapshot, including
// keys of nested object values.
func ShortenFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if nested, ok := v.(map[string]any); ok {
			v = ShortenFields(nested)
		}
		out[ShortenKey(k)] = v
	}
	return out
}

// ExpandFields reverses ShortenFields.
func ExpandFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if nested, ok := v.(map[string]any); ok {
			v = ExpandFields(nested)
		}
		out[ExpandKey(k)] = v
	}
	return out
}
