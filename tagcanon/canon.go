// Package tagcanon classifies free-form tags into typed entities
// (sport/tournament/team/player) and resolves them to canonical entities
// through the alias table.
package tagcanon

import (
	"context"
	"log/slog"

	"sportbot/normalize"
	"sportbot/store"
)

var allowedTypes = []string{"sport", "tournament", "team", "player"}

// UpsertTag runs the heuristic classifier against the raw type, then
// delegates to the store's identity and type-upgrade rules: same tag iff
// URL matches, else iff normalized name matches; type only ever upgrades
// from "unknown".
func UpsertTag(ctx context.Context, db *store.DB, name, rawURL, rawType, tagContext string) (*store.Tag, error) {
	typ := EnrichTagType(rawType, name, rawURL, tagContext)
	nameNormalized := normalize.Token(name)

	tag, err := db.UpsertTag(ctx, name, nameNormalized, rawURL, typ)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// UpsertAliasFromTag computes alias_normalized, ensures an entities row
// exists, and inserts the alias (ignoring the uniqueness conflict by
// back-filling the existing row instead).
func UpsertAliasFromTag(ctx context.Context, db *store.DB, tagID int64, name, typ, source, lang string) (bool, error) {
	aliasNormalized := normalize.Token(name)
	if aliasNormalized == "" {
		return false, nil
	}

	entity, err := db.UpsertEntity(ctx, aliasNormalized, typ, lang)
	if err != nil {
		return false, err
	}

	if err := db.UpsertAlias(ctx, &store.Alias{
		Alias:           name,
		AliasNormalized: aliasNormalized,
		EntityType:      typ,
		EntityID:        entity.ID,
		Source:          source,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// AssignmentResult summarizes the outcome of AssignEntitiesForArticle.
type AssignmentResult struct {
	Assigned  map[string]bool
	Unknown   []UnknownTag
	Conflicts []Conflict
}

// UnknownTag is a tag whose alias could not be resolved to any entity.
type UnknownTag struct {
	Alias string
	Type  string
	TagID int64
}

// Conflict records multiple entity candidates competing for one slot.
type Conflict struct {
	Type      string
	Aliases   []string
	EntityIDs []int64
}

// AssignEntitiesForArticle resolves every article-tag link through the
// alias table, picking at most one entity id per slot. If preferExisting and
// the slot already holds an entity, that entity is kept; otherwise the first
// candidate is picked. A conflict is logged and reported whenever a slot has
// more than one candidate, or the kept entity is not among the candidates.
// Unknowns (no alias hit) are logged and reported separately.
func AssignEntitiesForArticle(ctx context.Context, db *store.DB, newsID int64, preferExisting bool) (*AssignmentResult, error) {
	result := &AssignmentResult{Assigned: map[string]bool{}}

	tagIDs, err := db.TagsForArticle(ctx, newsID)
	if err != nil {
		return nil, err
	}
	if len(tagIDs) == 0 {
		return result, nil
	}

	existing, err := db.GetAssignment(ctx, newsID)
	if err != nil {
		return nil, err
	}
	existingBySlot := map[string]*int64{
		"sport":      existing.SportID,
		"tournament": existing.TournamentID,
		"team":       existing.TeamID,
		"player":     existing.PlayerID,
	}

	candidatesBySlot := map[string][]int64{}
	aliasesBySlot := map[string][]string{}
	seenBySlot := map[string]map[int64]bool{}
	for _, t := range allowedTypes {
		seenBySlot[t] = map[int64]bool{}
	}

	for _, tagID := range tagIDs {
		tag, err := db.TagByID(ctx, tagID)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, err
		}
		if !isAllowedType(tag.Type) {
			continue
		}

		aliasNormalized := normalize.Token(tag.Name)
		entityID, err := db.ResolveAlias(ctx, aliasNormalized, tag.Type)
		if err == store.ErrNotFound {
			result.Unknown = append(result.Unknown, UnknownTag{Alias: tag.Name, Type: tag.Type, TagID: tagID})
			slog.Info("entity assignment: unknown alias", "news_id", newsID, "alias", tag.Name, "type", tag.Type, "tag_id", tagID)
			continue
		}
		if err != nil {
			return nil, err
		}

		if !seenBySlot[tag.Type][entityID] {
			seenBySlot[tag.Type][entityID] = true
			candidatesBySlot[tag.Type] = append(candidatesBySlot[tag.Type], entityID)
		}
		aliasesBySlot[tag.Type] = append(aliasesBySlot[tag.Type], tag.Name)
	}

	final := store.EntityAssignment{NewsID: newsID}
	finalBySlot := map[string]*int64{
		"sport":      existingBySlot["sport"],
		"tournament": existingBySlot["tournament"],
		"team":       existingBySlot["team"],
		"player":     existingBySlot["player"],
	}

	for _, slot := range allowedTypes {
		candidates := candidatesBySlot[slot]
		if len(candidates) == 0 {
			if finalBySlot[slot] != nil {
				result.Assigned[slot] = true
			}
			continue
		}

		if preferExisting && finalBySlot[slot] != nil {
			chosen := *finalBySlot[slot]
			if len(candidates) > 1 || !containsInt64(candidates, chosen) {
				slog.Warn("entity assignment conflict", "news_id", newsID, "type", slot, "existing_id", chosen, "candidates", candidates)
				result.Conflicts = append(result.Conflicts, Conflict{Type: slot, Aliases: aliasesBySlot[slot], EntityIDs: candidates})
			}
		} else {
			chosen := candidates[0]
			if len(candidates) > 1 {
				slog.Warn("entity assignment conflict", "news_id", newsID, "type", slot, "picked", chosen, "candidates", candidates)
				result.Conflicts = append(result.Conflicts, Conflict{Type: slot, Aliases: aliasesBySlot[slot], EntityIDs: candidates})
			}
			finalBySlot[slot] = &chosen
		}

		if finalBySlot[slot] != nil {
			result.Assigned[slot] = true
		}
	}

	final.SportID = finalBySlot["sport"]
	final.TournamentID = finalBySlot["tournament"]
	final.TeamID = finalBySlot["team"]
	final.PlayerID = finalBySlot["player"]

	anyAssigned := final.SportID != nil || final.TournamentID != nil || final.TeamID != nil || final.PlayerID != nil
	if anyAssigned {
		if err := db.UpsertAssignment(ctx, &final); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func isAllowedType(typ string) bool {
	for _, t := range allowedTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func containsInt64(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
