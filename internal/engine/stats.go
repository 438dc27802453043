package engine

import (
	"context"
	"time"

	"taskdeck/internal/domain"
	"taskdeck/internal/repo"
)

// Dashboard aggregates the workspace overview: totals per stage and
// priority, the most recently created tasks, and how many tasks were
// created in the last seven days. Trashed tasks are left out of every
// figure.
func (e Engine) Dashboard(ctx context.Context) (domain.Stats, error) {
	byStage, err := e.Repo.CountTasksByStage(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	byPriority, err := e.Repo.CountTasksByPriority(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	total := 0
	for _, n := range byStage {
		total += n
	}
	weekAgo := e.now().UTC().Add(-7 * 24 * time.Hour).Format(time.RFC3339)
	lastWeek, err := e.Repo.CountTasksCreatedSince(ctx, weekAgo)
	if err != nil {
		return domain.Stats{}, err
	}
	recent, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		Limit: e.Config.RecentWindowOrDefault(),
	})
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Total:      total,
		ByStage:    byStage,
		ByPriority: byPriority,
		Recent:     recent,
		LastWeek:   lastWeek,
	}, nil
}
