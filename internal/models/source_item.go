// Package models defines the domain types shared across the pipeline.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// IdentityScope controls what goes into a content identity hash.
type IdentityScope string

const (
	// IdentityScopePerPlatform hashes platform + native id (default). The same
	// native id on two platforms is two distinct items.
	IdentityScopePerPlatform IdentityScope = "per_platform"
	// IdentityScopeCrossPlatform hashes the native id only, collapsing items
	// that share an id across platforms.
	IdentityScopeCrossPlatform IdentityScope = "cross_platform"
)

// ContentIdentity computes the stable dedup key for a raw item.
func ContentIdentity(scope IdentityScope, platform, nativeID string) string {
	var sum [32]byte
	if scope == IdentityScopeCrossPlatform {
		sum = sha256.Sum256([]byte(nativeID))
	} else {
		sum = sha256.Sum256([]byte(platform + "\x1f" + nativeID))
	}

	return hex.EncodeToString(sum[:])
}

// RawItem is one post or comment as produced by a source connector,
// before dedup and normalization.
type RawItem struct {
	Platform    string     `json:"platform"`
	NativeID    string     `json:"native_id"`
	Text        string     `json:"text"`
	AuthorRef   *string    `json:"author_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProductHint *uuid.UUID `json:"product_hint,omitempty"`
}

// SourceItem is a deduplicated raw item persisted by the ingestion
// coordinator. Append-only; only ProductID may be attached later.
type SourceItem struct {
	ID              uuid.UUID  `json:"id"`
	ContentIdentity string     `json:"content_identity"`
	Platform        string     `json:"platform"`
	NativeID        string     `json:"native_id"`
	ProductID       *uuid.UUID `json:"product_id,omitempty"`
	RawText         string     `json:"raw_text"`
	AuthorRef       *string    `json:"author_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	FetchedAt       time.Time  `json:"fetched_at"`
}

// RejectedItem reports one raw item dropped at ingestion with the reason.
type RejectedItem struct {
	Platform string `json:"platform"`
	NativeID string `json:"native_id"`
	Reason   string `json:"reason"`
}

// IngestReport summarizes one ingestion batch. Rejections never abort the
// batch; they are reported here.
type IngestReport struct {
	Inserted   int            `json:"inserted"`
	Duplicates int            `json:"duplicates"`
	Rejected   []RejectedItem `json:"rejected"`
}
