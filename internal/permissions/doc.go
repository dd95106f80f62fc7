// Package permissions resolves which toolsets a caller identity may
// activate.
//
// Resolution is fail-secure by construction: every failure mode (absent
// resolver, resolver error or panic, malformed input) degrades toward fewer
// permissions, ending at an empty list. The resolver memoizes results per
// client ID indefinitely; callers invalidate explicitly when permissions
// change upstream.
package permissions
