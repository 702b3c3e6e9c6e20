// Package corpus models a fetched snapshot of an account's post history and
// derives the deterministic fingerprint used as the snapshot cache key.
package corpus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
)

// Corpus is one account's fetched post set, in fetch order.
type Corpus struct {
	Account string
	Posts   []string
}

// markdownLink matches [text](url); lemmatization should see the anchor
// text, not the URL.
var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)

// Fingerprint returns a deterministic digest of the post set: post count
// plus a SHA-256 over length-prefixed post contents in order. Any change in
// content, count, or order changes the fingerprint.
func (c *Corpus) Fingerprint() string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, post := range c.Posts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(post)))
		h.Write(lenBuf[:])
		h.Write([]byte(post))
	}
	return fmt.Sprintf("%d-%x", len(c.Posts), h.Sum(nil)[:16])
}

// Text joins the posts into the single document handed to the lemmatizer,
// with markdown links reduced to their anchor text.
func (c *Corpus) Text() string {
	joined := strings.Join(c.Posts, "\n")
	return markdownLink.ReplaceAllString(joined, "$1")
}
