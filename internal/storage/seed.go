package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type seedNode struct {
	name     string
	children []seedNode
}

func leaves(names ...string) []seedNode {
	nodes := make([]seedNode, len(names))
	for i, n := range names {
		nodes[i] = seedNode{name: n}
	}
	return nodes
}

// defaultHierarchy is the fixed seed: seven root categories with their
// children, grandchildren and great-grandchildren. Root order matters,
// selection menus list categories in insertion order.
var defaultHierarchy = []seedNode{
	{name: "Food", children: leaves(
		"Worker Groceries", "Worker Water", "Worker Tea",
		"Worker Breakfast", "Worker Lunch", "Worker Dinner",
	)},
	{name: "Fuel", children: []seedNode{
		{name: "Petrol", children: leaves("3818 - Pickup", "8957 - Hyundai", "Workshop")},
		{name: "Diesel", children: []seedNode{
			{name: "Pickup", children: leaves("9431 - Pickup", "8889 - Pickup", "8415 - Pickup")},
			{name: "Workshop"},
			{name: "Crane"},
		}},
	}},
	{name: "Lubricants", children: leaves(
		"Transmission Oil", "Hydrolic Oil", "Gear Oil", "Grease", "Engine Oil",
	)},
	{name: "Utilities", children: []seedNode{
		{name: "Phone Bills", children: leaves("GM Phone Bill", "Supervisor Phone Bill")},
		{name: "Other"},
	}},
	{name: "Spare Parts", children: []seedNode{
		{name: "Pickup", children: leaves("Batteries", "Filters", "General Spare Parts")},
		{name: "Cranes", children: leaves("Batteries", "Filters", "General Spare Parts")},
	}},
	{name: "Repair & Maintainance"},
	{name: "General Purchases"},
}

// Seed populates the default category hierarchy when the tree is empty.
// When any category already exists it is a no-op, so re-initialization
// never overwrites or duplicates.
func (r *Repository) Seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	// Roots go in first so level-1 menus keep the canonical order.
	rootIDs := make([]int64, len(defaultHierarchy))
	for i, root := range defaultHierarchy {
		id, err := insertSeedNode(ctx, tx, root.name, 0, 1)
		if err != nil {
			return err
		}
		rootIDs[i] = id
	}
	for i, root := range defaultHierarchy {
		if err := insertSeedChildren(ctx, tx, root.children, rootIDs[i], 2); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	slog.InfoContext(ctx, "Seeded default category hierarchy", "roots", len(defaultHierarchy))
	return nil
}

func insertSeedChildren(ctx context.Context, tx *sql.Tx, children []seedNode, parentID int64, level int) error {
	for _, child := range children {
		id, err := insertSeedNode(ctx, tx, child.name, parentID, level)
		if err != nil {
			return err
		}
		if err := insertSeedChildren(ctx, tx, child.children, id, level+1); err != nil {
			return err
		}
	}
	return nil
}

func insertSeedNode(ctx context.Context, tx *sql.Tx, name string, parentID int64, level int) (int64, error) {
	parent := sql.NullInt64{Int64: parentID, Valid: parentID > 0}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO categories (name, parent_id, level) VALUES (?, ?, ?)",
		name, parent, level)
	if err != nil {
		return 0, fmt.Errorf("seed category %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("seed category %q: %w", name, err)
	}
	return id, nil
}
