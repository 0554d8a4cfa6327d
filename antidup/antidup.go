// Package antidup filters near-duplicate articles out of a story using
// title-signature Jaccard similarity with an entity-match relaxation.
package antidup

import "sportbot/fingerprint"

const (
	jaccardStrict = 0.90
	jaccardEntity = 0.80
)

// Article is the minimal shape antidup needs from an article under
// consideration.
type Article struct {
	ID        int64
	TitleSig  string
	EntitySig string
	Payload   any
}

// Hidden describes why an article was suppressed as a near-duplicate.
type Hidden struct {
	Article     Article
	DuplicateOf int64
	Jaccard     float64
	EntityMatch bool
}

// IsNearDuplicate reports whether candidate is a near-duplicate of kept,
// applying the entity-match relaxation: if both have the same non-empty
// entity signature, the threshold drops from 0.90 to 0.80.
func IsNearDuplicate(candidate, kept Article) (isDup bool, jac float64, entityMatch bool) {
	s := fingerprint.Jaccard(
		fingerprint.SignatureTokens(candidate.TitleSig),
		fingerprint.SignatureTokens(kept.TitleSig),
	)
	entityMatch = candidate.EntitySig != "" && candidate.EntitySig == kept.EntitySig

	if entityMatch && s >= jaccardEntity {
		return true, s, true
	}
	if s >= jaccardStrict {
		return true, s, entityMatch
	}
	return false, s, entityMatch
}

// FilterNearDuplicates iterates articles in order, keeping the first
// occurrence of each near-duplicate group. Order is preserved among kept
// articles.
func FilterNearDuplicates(articles []Article) (visible []Article, hidden []Hidden) {
	for _, candidate := range articles {
		dup := false
		for _, keptArticle := range visible {
			isDup, jac, entityMatch := IsNearDuplicate(candidate, keptArticle)
			if isDup {
				hidden = append(hidden, Hidden{
					Article:     candidate,
					DuplicateOf: keptArticle.ID,
					Jaccard:     jac,
					EntityMatch: entityMatch,
				})
				dup = true
				break
			}
		}
		if !dup {
			visible = append(visible, candidate)
		}
	}
	return visible, hidden
}
