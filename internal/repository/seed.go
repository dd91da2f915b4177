package repository

import (
	"context"
	"fmt"

	"github.com/nm90/educational-mvc-sub001/internal/model"
)

// Migrate creates the schema. Users come first: tasks reference them.
func Migrate(ctx context.Context, users *UserRepo, tasks *TaskRepo) error {
	if err := users.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	if err := tasks.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}

// Seed inserts demo users and tasks into an empty database. It runs outside
// any request, so nothing it does is traced.
func Seed(ctx context.Context, users *UserRepo, tasks *TaskRepo) error {
	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	demoUsers := []model.User{
		{Name: "Ada Lovelace", Email: "ada@example.com"},
		{Name: "Alan Turing", Email: "alan@example.com"},
		{Name: "Grace Hopper", Email: "grace@example.com"},
	}
	for i := range demoUsers {
		if err := users.Create(ctx, &demoUsers[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", demoUsers[i].Email, err)
		}
	}

	ada, alan, grace := demoUsers[0].ID, demoUsers[1].ID, demoUsers[2].ID
	demoTasks := []model.Task{
		{Title: "Read the request trace", Description: "Open the debug panel on any page.", Status: model.StatusTodo, Priority: model.PriorityHigh, OwnerID: ada},
		{Title: "Spot the N+1 query", Description: "Count the owner lookups on the task list.", Status: model.StatusInProgress, Priority: model.PriorityMedium, OwnerID: alan, AssigneeID: &ada},
		{Title: "Trigger a constraint error", Description: "Create a user with an existing email.", Status: model.StatusTodo, Priority: model.PriorityLow, OwnerID: grace},
		{Title: "Compare HTML and JSON", Description: "Append ?format=json to any URL.", Status: model.StatusDone, Priority: model.PriorityMedium, OwnerID: ada, AssigneeID: &grace},
	}
	for i := range demoTasks {
		if err := tasks.Create(ctx, &demoTasks[i]); err != nil {
			return fmt.Errorf("seed task %q: %w", demoTasks[i].Title, err)
		}
	}
	return nil
}
