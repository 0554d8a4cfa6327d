// Package cluster groups recently ingested articles into multi-article
// stories using a sliding time window, tag-bucketed candidate pairing, and
// a disjoint-set forest over positively scored pairs.
package cluster

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sportbot/antidup"
	"sportbot/fingerprint"
	"sportbot/store"
	"sportbot/titlerefiner"
)

// Config tunes the clustering pass. Zero-value fields fall back to the
// spec-mandated defaults via WithDefaults.
type Config struct {
	WindowDays      int
	MaxArticles     int
	TitleThreshold  float64
	TimeDelta       time.Duration
	StoryLookback   time.Duration
}

// WithDefaults fills unset fields with the defaults from spec section 4.6.
func (c Config) WithDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = 3
	}
	if c.MaxArticles <= 0 {
		c.MaxArticles = 2000
	}
	if c.TitleThreshold <= 0 {
		c.TitleThreshold = 0.6
	}
	if c.TimeDelta <= 0 {
		c.TimeDelta = 6 * time.Hour
	}
	if c.StoryLookback <= 0 {
		c.StoryLookback = 72 * time.Hour
	}
	return c
}

type articleInfo struct {
	newsID        int64
	titleTokens   []string
	published     *time.Time
	entityIDs     []int64 // tag ids across every typed tag (sport/tournament/team/player)
	sportIDs      []int64 // tag ids typed "sport"
	tournamentIDs []int64 // tag ids typed "tournament"
}

// Result summarizes one clustering pass.
type Result struct {
	ClustersFound    int
	StoriesCreated   int
	StoriesAttached  int
	ArticlesLinked   int
}

// Run executes one clustering pass over the recent-article window and
// returns a summary of what it did.
func Run(ctx context.Context, db *store.DB, cfg Config, now time.Time) (*Result, error) {
	cfg = cfg.WithDefaults()
	result := &Result{}

	since := now.AddDate(0, 0, -cfg.WindowDays)
	newsRows, err := db.RecentNews(ctx, since, cfg.MaxArticles)
	if err != nil {
		return nil, err
	}
	if len(newsRows) == 0 {
		return result, nil
	}

	infos := make(map[int64]*articleInfo, len(newsRows))
	var ids []int64
	for _, n := range newsRows {
		info, err := buildArticleInfo(ctx, db, n)
		if err != nil {
			return nil, err
		}
		infos[n.ID] = info
		ids = append(ids, n.ID)
	}

	buckets := bucketArticles(infos)
	uf := newUnionFind(ids)

	positivePairs, err := scoreBucketsConcurrently(ctx, buckets, infos, cfg)
	if err != nil {
		return nil, err
	}
	for _, pair := range positivePairs {
		uf.union(pair[0], pair[1])
	}

	components := uf.components(2)
	result.ClustersFound = len(components)

	for _, members := range components {
		sortNewestFirst(members, infos)
		if err := attachCluster(ctx, db, members, infos, newsRows, cfg, now, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// buildArticleInfo populates the entity/sport/tournament id sets from the
// raw tags linked to the article via news_article_tags, not from the
// resolved canonical entity assignment: an article can carry several
// tournament tags at once, and the clustering predicate compares in the
// tag id space, not the (at most one per slot) entity id space.
func buildArticleInfo(ctx context.Context, db *store.DB, n *store.News) (*articleInfo, error) {
	info := &articleInfo{
		newsID:      n.ID,
		titleTokens: fingerprint.Tokenize(n.Title),
		published:   n.PublishedAt,
	}

	tagIDs, err := db.TagsForArticle(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	for _, tagID := range tagIDs {
		tag, err := db.TagByID(ctx, tagID)
		if err != nil {
			return nil, err
		}
		switch tag.Type {
		case "sport":
			info.sportIDs = append(info.sportIDs, tagID)
			info.entityIDs = append(info.entityIDs, tagID)
		case "tournament":
			info.tournamentIDs = append(info.tournamentIDs, tagID)
			info.entityIDs = append(info.entityIDs, tagID)
		case "team", "player":
			info.entityIDs = append(info.entityIDs, tagID)
		}
	}
	return info, nil
}

// bucketArticles groups article ids by each sport tag id and each
// tournament tag id they carry; articles lacking both fall into a null
// bucket.
func bucketArticles(infos map[int64]*articleInfo) map[string][]int64 {
	buckets := make(map[string][]int64)
	for id, info := range infos {
		placed := false
		for _, tagID := range info.sportIDs {
			key := "tag:" + strconv.FormatInt(tagID, 10)
			buckets[key] = append(buckets[key], id)
			placed = true
		}
		for _, tagID := range info.tournamentIDs {
			key := "tag:" + strconv.FormatInt(tagID, 10)
			buckets[key] = append(buckets[key], id)
			placed = true
		}
		if !placed {
			buckets["null"] = append(buckets["null"], id)
		}
	}
	return buckets
}

// scoreBucketsConcurrently evaluates every candidate pair within each
// sport/tournament bucket. Buckets are independent, read-only work, so each
// runs in its own goroutine; the caller applies the returned pairs to the
// union-find forest single-threaded.
func scoreBucketsConcurrently(ctx context.Context, buckets map[string][]int64, infos map[int64]*articleInfo, cfg Config) ([][2]int64, error) {
	var mu sync.Mutex
	var positive [][2]int64

	g, _ := errgroup.WithContext(ctx)
	for _, bucket := range buckets {
		bucket := bucket
		g.Go(func() error {
			var local [][2]int64
			for i := 0; i < len(bucket); i++ {
				for j := i + 1; j < len(bucket); j++ {
					a, b := infos[bucket[i]], infos[bucket[j]]
					if evaluatePair(a, b, cfg) {
						local = append(local, [2]int64{a.newsID, b.newsID})
					}
				}
			}
			if len(local) > 0 {
				mu.Lock()
				positive = append(positive, local...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return positive, nil
}

func evaluatePair(a, b *articleInfo, cfg Config) bool {
	hits := 0

	jac := fingerprint.Jaccard(a.titleTokens, b.titleTokens)
	if jac >= cfg.TitleThreshold {
		hits++
	}

	if entitySetsIntersect(a.entityIDs, b.entityIDs) {
		hits++
	}

	if a.published != nil && b.published != nil {
		delta := a.published.Sub(*b.published)
		if delta < 0 {
			delta = -delta
		}
		if delta <= cfg.TimeDelta {
			hits++
		}
	}

	return hits >= 2
}

func entitySetsIntersect(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if set[id] {
			return true
		}
	}
	return false
}

func sortNewestFirst(members []int64, infos map[int64]*articleInfo) {
	sort.Slice(members, func(i, j int) bool {
		pi, pj := infos[members[i]].published, infos[members[j]].published
		if pi == nil && pj == nil {
			return members[i] < members[j]
		}
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return pi.After(*pj)
	})
}

func attachCluster(ctx context.Context, db *store.DB, members []int64, infos map[int64]*articleInfo,
	newsRows []*store.News, cfg Config, now time.Time, result *Result) error {

	head := members[0]
	headFP, err := db.GetFingerprint(ctx, head)
	if err != nil && err != store.ErrNotFound {
		return err
	}

	var storyID int64
	var attached bool

	if headFP != nil {
		storyID, attached, err = findNearDupStory(ctx, db, head, headFP, cfg, now)
		if err != nil {
			return err
		}
	}

	if !attached {
		storyID, attached, err = findConsistentExistingStory(ctx, db, members)
		if err != nil {
			return err
		}
	}

	var isNewStory bool
	if !attached {
		storyID, err = createStoryForCluster(ctx, db, members, newsRows, now)
		if err != nil {
			return err
		}
		isNewStory = true
	}

	linked := 0
	for _, newsID := range members {
		created, err := db.LinkArticleToStory(ctx, storyID, newsID)
		if err != nil {
			return err
		}
		if created {
			linked++
		}
	}
	if linked > 0 {
		if err := db.TouchStory(ctx, storyID, now); err != nil {
			return err
		}
	}

	result.ArticlesLinked += linked
	if isNewStory {
		result.StoriesCreated++
	} else {
		result.StoriesAttached++
	}
	return nil
}

// findNearDupStory consults the near-dup-story index: the cluster's head
// article's fingerprint is compared against every article linked to a story
// updated within the lookback window, using the same thresholds as the
// near-duplicate article filter.
func findNearDupStory(ctx context.Context, db *store.DB, head int64, headFP *store.Fingerprint, cfg Config, now time.Time) (int64, bool, error) {
	since := now.Add(-cfg.StoryLookback)
	candidates, err := db.StoryFingerprintsSince(ctx, since)
	if err != nil {
		return 0, false, err
	}

	incoming := antidup.Article{ID: head, TitleSig: headFP.TitleSig, EntitySig: headFP.EntitySig}
	for _, c := range candidates {
		if c.NewsID == head {
			continue
		}
		kept := antidup.Article{ID: c.NewsID, TitleSig: c.TitleSig, EntitySig: c.EntitySig}
		if isDup, _, _ := antidup.IsNearDuplicate(incoming, kept); isDup {
			return c.StoryID, true, nil
		}
	}
	return 0, false, nil
}

// findConsistentExistingStory attaches to the story every cluster member is
// already linked to, if they agree; else picks the lowest story id among
// whichever members do link somewhere, per the attach-to-first-found policy
// (spec section 9, open question 1).
func findConsistentExistingStory(ctx context.Context, db *store.DB, members []int64) (int64, bool, error) {
	var linkedStories []int64
	for _, newsID := range members {
		storyID, err := db.StoryForArticle(ctx, newsID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		linkedStories = append(linkedStories, storyID)
	}
	if len(linkedStories) == 0 {
		return 0, false, nil
	}

	allSame := true
	for _, id := range linkedStories {
		if id != linkedStories[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return linkedStories[0], true, nil
	}

	lowest := linkedStories[0]
	for _, id := range linkedStories[1:] {
		if id < lowest {
			lowest = id
		}
	}
	slog.Info("cluster member attached across divergent stories, picking lowest id",
		"candidates", linkedStories, "picked", lowest)
	return lowest, true, nil
}

func createStoryForCluster(ctx context.Context, db *store.DB, members []int64, newsRows []*store.News, now time.Time) (int64, error) {
	byID := make(map[int64]*store.News, len(newsRows))
	for _, n := range newsRows {
		byID[n.ID] = n
	}

	var payloads []titlerefiner.ArticlePayload
	for _, newsID := range members {
		n, ok := byID[newsID]
		if !ok {
			continue
		}
		payload := titlerefiner.ArticlePayload{Title: n.Title}
		if n.PublishedAt != nil {
			payload.Published = *n.PublishedAt
			payload.HasPublished = true
		}
		names, err := entityNames(ctx, db, newsID)
		if err != nil {
			return 0, err
		}
		payload.Sports = names["sport"]
		payload.Tournaments = names["tournament"]
		payload.Teams = names["team"]
		payload.Players = names["player"]
		payloads = append(payloads, payload)
	}

	title := titlerefiner.ComputeStoryTitle(payloads)
	story, err := db.CreateStory(ctx, title, now)
	if err != nil {
		return 0, err
	}
	return story.ID, nil
}

func entityNames(ctx context.Context, db *store.DB, newsID int64) (map[string][]string, error) {
	out := map[string][]string{}
	assignment, err := db.GetAssignment(ctx, newsID)
	if err != nil {
		return nil, err
	}
	slots := map[string]*int64{
		"sport": assignment.SportID, "tournament": assignment.TournamentID,
		"team": assignment.TeamID, "player": assignment.PlayerID,
	}
	for typ, id := range slots {
		if id == nil {
			continue
		}
		name, err := db.AliasDisplayName(ctx, *id, typ)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[typ] = append(out[typ], name)
	}
	return out, nil
}
