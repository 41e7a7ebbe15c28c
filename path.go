package squashfs

import "strings"

// tokenize splits a path into its non-empty, non-"." components, the way
// sqfs_tokenize does in the original driver. "/a//b/./c" and "a/b/c" both
// yield ["a", "b", "c"]. ".." is kept as an ordinary component here (fs.FS
// callers reject it via fs.ValidPath before tokenizing; tokenizePath below
// collapses it for the literal facade's more permissive path grammar).
func tokenize(p string) []string {
	raw := strings.Split(p, "/")
	toks := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" || t == "." {
			continue
		}
		toks = append(toks, t)
	}
	return toks
}

// joinTokens rebuilds a clean root-relative path string (no leading "/",
// "." for the root) from a token list, the counterpart of
// sqfs_join/sqfs_concat_tokens.
func joinTokens(toks []string) string {
	if len(toks) == 0 {
		return "."
	}
	return strings.Join(toks, "/")
}

// resolveSymlink computes the absolute token path a symlink target resolves
// to, given the token path of the directory containing the symlink. A target
// starting with "/" is absolute; otherwise it is taken relative to dirTokens,
// and any ".." component pops the last resolved component, mirroring
// sqfs_get_abs_path/sqfs_resolve_symlink.
func resolveSymlink(dirTokens []string, target string) []string {
	var base []string
	if !strings.HasPrefix(target, "/") {
		base = dirTokens
	}
	return collapseDotDot(base, tokenize(target))
}

// collapseDotDot appends toks onto base, popping the last component of the
// running result for every ".." encountered (a ".." at the root is simply
// dropped, not an error), the same resolution spec.md §4.5 describes for
// "/a/../b/file"-style paths.
func collapseDotDot(base []string, toks []string) []string {
	out := append([]string{}, base...)
	for _, part := range toks {
		if part == ".." {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

// tokenizePath splits a POSIX-style path (leading "/" optional, ".."
// permitted) into a clean, resolved token list. This is the path grammar
// spec.md's literal facade (dispatcher.go) speaks; the idiomatic io/fs.FS
// methods in sqfs.go instead enforce fs.ValidPath's stricter, unrooted,
// no-".." convention, as every conforming fs.FS implementation must.
func tokenizePath(p string) []string {
	return collapseDotDot(nil, tokenize(p))
}

// splitBase splits a clean token path into its parent directory tokens and
// final component name, mirroring sqfs_split_path/sqfs_basename/sqfs_dirname.
// Returns ok=false for the root (no parent, no name).
func splitBase(toks []string) (parent []string, name string, ok bool) {
	if len(toks) == 0 {
		return nil, "", false
	}
	return toks[:len(toks)-1], toks[len(toks)-1], true
}
