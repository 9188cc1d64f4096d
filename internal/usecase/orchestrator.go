package usecase

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

// ClientFactory builds the per-job chat client around the job's cost ledger.
type ClientFactory func(ledger *domain.CostLedger) domain.ChatClient

// Orchestrator drives one mining job end to end: fetch, classify, cluster,
// name themes, generate, validate, persist. It owns the job row for the
// duration of the run; the only way out of running is a terminal write.
type Orchestrator struct {
	Posts     domain.PostRepository
	Runs      domain.RunRepository
	Ideas     domain.IdeaRepository
	Jobs      domain.JobRepository
	NewClient ClientFactory

	CostLimitUSD                float64
	ProcessingBudget            time.Duration
	InterClusterDelay           time.Duration
	IdeaBatchDelay              time.Duration
	ThemeBatchDelay             time.Duration
	ValidationDelay             time.Duration
	MaxClustersPerBatch         int
	MinScoreThreshold           int
	DedupLookbackDays           int
	DedupNameLimit              int
	FallbackSimilarityThreshold float64

	Sleep func(ctx domain.Context, d time.Duration) error
	Now   func() time.Time
}

func (o *Orchestrator) sleep(ctx domain.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes one mining job. It always writes a terminal job row: failures
// anywhere, including panics, end the job as failed with the error message.
func (o *Orchestrator) Run(ctx domain.Context, task domain.MineTaskPayload) (err error) {
	lg := observability.LoggerFromContext(ctx).With("job_id", task.JobID)
	ctx = observability.ContextWithLogger(ctx, lg)
	start := o.now()
	params := task.Params

	observability.StartProcessingJob("mine")
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("op=orchestrator.run: panic: %v", rec)
		}
		if err != nil {
			observability.FailJob("mine")
			lg.Error("job failed", "error", err)
			if ferr := o.Jobs.SetFailed(ctx, task.JobID, o.now(), err.Error()); ferr != nil {
				lg.Error("failed to write terminal failure", "error", ferr)
			}
		} else {
			observability.CompleteJob("mine")
		}
	}()

	if err := o.Jobs.SetRunning(ctx, task.JobID, start); err != nil {
		// The run proceeds; a later terminal write corrects the row.
		lg.Warn("failed to mark job running", "error", err)
	}

	ledger := domain.NewCostLedger(o.CostLimitUSD)
	client := o.NewClient(ledger)

	progress := domain.Progress{TotalSteps: domain.TotalSteps}
	setProgress := func(step string, completed int) {
		progress.CurrentStep = step
		progress.CompletedSteps = completed
		if perr := o.Jobs.SetProgress(ctx, task.JobID, progress); perr != nil {
			lg.Warn("progress update failed", "step", step, "error", perr)
		}
	}
	complete := func(res domain.Result) error {
		res.DurationMS = o.now().Sub(start).Milliseconds()
		res.Cost = ledger.Summary()
		res.FallbackMode = client.FallbackMode()
		progress.CompletedSteps = domain.TotalSteps
		setProgress("done", domain.TotalSteps)
		if cerr := o.Jobs.SetCompleted(ctx, task.JobID, o.now(), res); cerr != nil {
			return cerr
		}
		lg.Info("job completed",
			"ideas_generated", res.IdeasGenerated,
			"ideas_inserted", res.IdeasInserted,
			"clusters_processed", res.ClustersProcessed,
			"rate_limited", res.RateLimited,
			"duration_ms", res.DurationMS)
		return nil
	}

	// Step 1: fetch candidate posts. The score gate is applied by the
	// classifier so that unscored posts still reach the heuristic path.
	setProgress("fetch_posts", 0)
	since := o.now().Add(-time.Duration(params.Days) * 24 * time.Hour)
	posts, err := o.Posts.SelectPosts(ctx, params.Platform, since, nil, params.Limit)
	if err != nil {
		return fmt.Errorf("op=orchestrator.fetch: %w", err)
	}
	progress.PostsFetched = len(posts)
	if len(posts) == 0 {
		return complete(domain.Result{
			Message: fmt.Sprintf("no posts matched platform=%s within %d days", params.Platform, params.Days),
		})
	}

	// Step 2: classify.
	setProgress("classify", 1)
	var opps []domain.OpportunityPost
	for _, p := range posts {
		c := Classify(p, params.MinSaaS(), params.ComplaintSentimentMax)
		if c.IsOpportunity {
			opps = append(opps, domain.OpportunityPost{
				Post:            p,
				OpportunityType: c.Type,
				Signals:         c.Signals,
			})
		}
	}
	progress.Opportunities = len(opps)
	lg.Info("classified posts", "posts", len(posts), "opportunities", len(opps))
	if len(opps) == 0 {
		return complete(domain.Result{
			PostsProcessed: len(posts),
			Message:        fmt.Sprintf("no opportunity posts among %d candidates", len(posts)),
		})
	}

	// Step 3: cluster over similarity edges, retrying with a relaxed
	// threshold before giving up.
	setProgress("cluster", 2)
	ids := make([]int64, 0, len(opps))
	for _, p := range opps {
		ids = append(ids, p.ID)
	}
	edges, err := o.Posts.SelectSimilarityRows(ctx, ids)
	if err != nil {
		return fmt.Errorf("op=orchestrator.similarity: %w", err)
	}
	usedTau := params.SimilarityTau()
	clusters := BuildClusters(opps, edges, usedTau, params.MinClusterSize)
	if len(clusters) == 0 && usedTau > o.FallbackSimilarityThreshold {
		usedTau = o.FallbackSimilarityThreshold
		lg.Info("no clusters at configured threshold, relaxing", "threshold", usedTau)
		clusters = BuildClusters(opps, edges, usedTau, params.MinClusterSize)
	}
	if len(clusters) == 0 {
		return complete(domain.Result{
			PostsProcessed: len(posts),
			Message: fmt.Sprintf("no clusters at similarity_threshold=%.2f (relaxed to %.2f) with min_cluster_size=%d",
				params.SimilarityTau(), usedTau, params.MinClusterSize),
		})
	}
	progress.ClustersFound = len(clusters)
	lg.Info("built clusters", "clusters", len(clusters), "threshold", usedTau)

	// Step 4: name themes, batched with bounded fan-out.
	setProgress("name_themes", 3)
	batch := o.MaxClustersPerBatch
	if batch <= 0 {
		batch = 50
	}
	for lo := 0; lo < len(clusters); lo += batch {
		hi := lo + batch
		if hi > len(clusters) {
			hi = len(clusters)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batch)
		for i := lo; i < hi; i++ {
			i := i
			g.Go(func() error {
				clusters[i].ThemeSummary = NameTheme(gctx, client, params.IdeationModel, clusters[i])
				return nil
			})
		}
		_ = g.Wait()
		progress.ThemesNamed = hi
		setProgress("name_themes", 3)
		if hi < len(clusters) {
			if err := o.sleep(ctx, o.ThemeBatchDelay); err != nil {
				return err
			}
		}
	}

	// Every cluster gets a theme, but only the cap proceeds to ideation.
	if params.MaxClustersToProcess > 0 && len(clusters) > params.MaxClustersToProcess {
		lg.Info("limiting clusters for idea generation",
			"clusters", len(clusters), "max", params.MaxClustersToProcess)
		clusters = clusters[:params.MaxClustersToProcess]
	}

	// Step 5: recent idea names for dedup. Non-fatal: dedup degrades to
	// in-batch only.
	setProgress("fetch_recent_ideas", 4)
	persisted, err := o.Posts.RecentIdeaNames(ctx, o.DedupLookbackDays, o.DedupNameLimit)
	if err != nil {
		lg.Warn("recent idea names unavailable, dedup limited to this batch", "error", err)
		persisted = nil
	}

	// Step 6: run header.
	setProgress("create_run", 5)
	notes := fmt.Sprintf("threshold=%.2f min_cluster_size=%d clusters=%d",
		usedTau, params.MinClusterSize, len(clusters))
	runID, err := o.Runs.CreateRun(ctx, params.Platform, params.Days, params.Limit, notes)
	if err != nil {
		return fmt.Errorf("op=orchestrator.create_run: %w", err)
	}

	// Step 7: generate ideas sequentially so every prompt sees the full
	// accept-list, pacing between clusters and batches.
	setProgress("generate_ideas", 6)
	dedup := NewDeduplicator(persisted, o.MinScoreThreshold)
	var accepted []domain.Idea
	rateLimited := false
	clustersProcessed := 0
	var budgetMsg string
	for i, c := range clusters {
		if o.ProcessingBudget > 0 && o.now().Sub(start) > o.ProcessingBudget {
			budgetMsg = fmt.Sprintf("processing budget reached after %d of %d clusters", i, len(clusters))
			lg.Warn("processing budget reached", "clusters_done", i, "clusters_total", len(clusters))
			break
		}
		observability.ObserveClusterSize(c.Size)
		ideas, err := GenerateIdeas(ctx, client, c, params, dedup.References(), o.MinScoreThreshold)
		switch {
		case errors.Is(err, domain.ErrDailyLimitExceeded):
			rateLimited = true
			lg.Warn("daily rate limit exhausted, carrying accumulated ideas forward",
				"clusters_processed", clustersProcessed)
		case errors.Is(err, domain.ErrInvalidArgument):
			// Configuration problems (missing credentials, bad request
			// shape) hit every cluster identically; fail the job instead
			// of completing with nothing.
			return fmt.Errorf("op=orchestrator.generate: %w", err)
		case err != nil:
			lg.Warn("idea generation failed for cluster", "cluster_id", c.ID, "error", err)
		default:
			for _, idea := range ideas {
				if dedup.Accept(idea) {
					accepted = append(accepted, idea)
				}
			}
			clustersProcessed++
		}
		if rateLimited {
			break
		}
		progress.IdeasGenerated = len(accepted)
		setProgress("generate_ideas", 6)
		if i < len(clusters)-1 {
			if err := o.sleep(ctx, o.InterClusterDelay); err != nil {
				return err
			}
			if (i+1)%batch == 0 {
				if err := o.sleep(ctx, o.IdeaBatchDelay); err != nil {
					return err
				}
			}
		}
	}

	// Step 8: optional validation of the top ideas. Skipped after rate-limit
	// exhaustion and in degraded mode.
	setProgress("validate", 7)
	validated := 0
	if params.ValidationEnabled() && !rateLimited && !client.FallbackMode() && len(accepted) > 0 {
		v := &Validator{
			Client:         client,
			Ledger:         ledger,
			InterCallDelay: o.ValidationDelay,
			Sleep:          o.sleep,
			Now:            o.now,
		}
		validated = v.Validate(ctx, accepted, params)
	}
	progress.IdeasValidated = validated

	// Step 9: persist.
	setProgress("persist", 8)
	for i := range accepted {
		finalizePayload(&accepted[i])
		observability.ObserveIdea(accepted[i].Score)
	}
	inserted, err := o.Ideas.InsertIdeas(ctx, runID, accepted)
	if err != nil {
		return fmt.Errorf("op=orchestrator.persist: %w", err)
	}
	progress.IdeasInserted = inserted

	// Step 10: terminal result.
	setProgress("finalize", 9)
	return complete(domain.Result{
		IdeasGenerated:    len(accepted),
		IdeasInserted:     inserted,
		ClustersProcessed: clustersProcessed,
		PostsProcessed:    len(posts),
		RunID:             runID,
		RateLimited:       rateLimited,
		Message:           budgetMsg,
	})
}

// finalizePayload folds the typed enrichments into the forensic payload blob
// so the persisted row replays the full provenance of the idea.
func finalizePayload(idea *domain.Idea) {
	if idea.Payload == nil {
		idea.Payload = map[string]any{}
	}
	idea.Payload["cluster"] = map[string]any{
		"id":    idea.ClusterID,
		"theme": idea.ClusterTheme,
		"size":  idea.ClusterSize,
	}
	idea.Payload["automation"] = map[string]any{
		"category":       idea.AutomationCategory,
		"signals":        idea.AutomationSignals,
		"original_score": idea.OriginalScore,
		"boost":          idea.AutomationBoost,
	}
	idea.Payload["does_not_exist_enum"] = idea.DoesNotExist
	if idea.Validation != nil {
		idea.Payload["validation_typed"] = idea.Validation
	}
}
