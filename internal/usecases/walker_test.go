package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"unreplied/internal/domain"
	"unreplied/internal/usecases"
)

func TestWalker_Walk_BuildsTreeInUpstreamOrder(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 60)
	store := newStore(
		root,
		cast("0xa", 1, "0xroot", 50),
		cast("0xb", 2, "0xroot", 40),
		cast("0xa1", authorFID, "0xa", 30),
		cast("0xa1x", 3, "0xa1", 20),
	)
	w := usecases.NewWalker(store, usecases.WalkerConfig{}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Nodes != 5 {
		t.Errorf("Nodes: got %d, want 5", tree.Nodes)
	}
	if tree.Truncated {
		t.Error("expected tree not to be truncated")
	}
	if got := hashes(tree.Root.Children); !equalStrings(got, []string{"0xa", "0xb"}) {
		t.Errorf("root children: got %v", got)
	}
	a := tree.Root.Children[0]
	if len(a.Children) != 1 || a.Children[0].Hash != "0xa1" {
		t.Fatalf("0xa children: got %v", hashes(a.Children))
	}
	if len(a.Children[0].Children) != 1 || a.Children[0].Children[0].Hash != "0xa1x" {
		t.Errorf("0xa1 children: got %v", hashes(a.Children[0].Children))
	}
	if got := tree.Root.Descendants(); got != 4 {
		t.Errorf("Descendants: got %d, want 4", got)
	}
}

func TestWalker_Walk_DepthCapTruncates(t *testing.T) {
	// Arrange
	root := cast("0x0", authorFID, "", 100)
	store := newStore(root)
	parent := "0x0"
	for i := 1; i <= 5; i++ {
		h := fmt.Sprintf("0x%d", i)
		store.Add(cast(h, uint64(i), parent, 100-i))
		parent = h
	}
	w := usecases.NewWalker(store, usecases.WalkerConfig{MaxDepth: 2}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Nodes != 3 {
		t.Errorf("Nodes: got %d, want 3", tree.Nodes)
	}
	if !tree.Truncated {
		t.Error("expected depth cap to truncate the tree")
	}
}

func TestWalker_Walk_DepthCapOverLeavesIsComplete(t *testing.T) {
	// Arrange
	root := cast("0x0", authorFID, "", 100)
	store := newStore(root, cast("0x1", 7, "0x0", 90))
	stats := usecases.NewStats()
	w := usecases.NewWalker(store, usecases.WalkerConfig{MaxDepth: 1}, stats)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Nodes != 2 {
		t.Errorf("Nodes: got %d, want 2", tree.Nodes)
	}
	if tree.Truncated {
		t.Error("leaves at the depth cap should not mark the tree truncated")
	}
	if got := stats.Snapshot().TruncatedWalks; got != 0 {
		t.Errorf("TruncatedWalks: got %d, want 0", got)
	}
}

func TestWalker_Walk_DepthCapUnknownBelowTruncates(t *testing.T) {
	// Arrange
	root := cast("0x0", authorFID, "", 100)
	store := newStore(root, cast("0x1", 7, "0x0", 90))
	store.FailReplies("0x1", errors.New("hub timeout"))
	w := usecases.NewWalker(store, usecases.WalkerConfig{MaxDepth: 1}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tree.Truncated {
		t.Error("a failed lookup below the depth cap should mark the tree truncated")
	}
}

func TestWalker_Walk_FanoutCapTruncates(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	store := newStore(root)
	for i := 0; i < 5; i++ {
		store.Add(cast(fmt.Sprintf("0xr%d", i), uint64(i+1), "0xroot", 90-i))
	}
	w := usecases.NewWalker(store, usecases.WalkerConfig{MaxFanout: 3}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := hashes(tree.Root.Children); !equalStrings(got, []string{"0xr0", "0xr1", "0xr2"}) {
		t.Errorf("children: got %v", got)
	}
	if !tree.Truncated {
		t.Error("expected fanout cap to truncate the tree")
	}
}

func TestWalker_Walk_NodeCapTruncates(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	store := newStore(root)
	for i := 0; i < 10; i++ {
		store.Add(cast(fmt.Sprintf("0xr%d", i), uint64(i+1), "0xroot", 90-i))
	}
	stats := usecases.NewStats()
	w := usecases.NewWalker(store, usecases.WalkerConfig{MaxNodes: 4}, stats)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Nodes != 4 {
		t.Errorf("Nodes: got %d, want 4", tree.Nodes)
	}
	if !tree.Truncated {
		t.Error("expected node cap to truncate the tree")
	}
	if got := stats.Snapshot().TruncatedWalks; got != 1 {
		t.Errorf("TruncatedWalks: got %d, want 1", got)
	}
}

func TestWalker_Walk_BranchFailureKeepsWalking(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	store := newStore(
		root,
		cast("0xa", 1, "0xroot", 90),
		cast("0xb", 2, "0xroot", 80),
		cast("0xa1", 3, "0xa", 70),
		cast("0xb1", 4, "0xb", 60),
	)
	store.FailReplies("0xa", errors.New("connection reset"))
	stats := usecases.NewStats()
	w := usecases.NewWalker(store, usecases.WalkerConfig{}, stats)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("branch failure must not fail the walk: %v", err)
	}
	if tree.FailedBranches != 1 {
		t.Errorf("FailedBranches: got %d, want 1", tree.FailedBranches)
	}
	if n := len(tree.Root.Children[0].Children); n != 0 {
		t.Errorf("failed branch children: got %d, want 0", n)
	}
	if n := len(tree.Root.Children[1].Children); n != 1 {
		t.Errorf("healthy branch children: got %d, want 1", n)
	}
	if got := stats.Snapshot().BranchFailures; got != 1 {
		t.Errorf("BranchFailures: got %d, want 1", got)
	}
}

func TestWalker_Walk_FetchTimeoutIsBranchFailure(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	src := &MockSource{Store: newStore(root, cast("0xa", 1, "0xroot", 90)), delay: time.Second}
	w := usecases.NewWalker(src, usecases.WalkerConfig{FetchTimeout: 20 * time.Millisecond}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("timeout must degrade to no replies: %v", err)
	}
	if tree.FailedBranches != 1 || len(tree.Root.Children) != 0 {
		t.Errorf("got FailedBranches=%d children=%d, want 1 and 0", tree.FailedBranches, len(tree.Root.Children))
	}
}

func TestWalker_Walk_CanceledContextFails(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	w := usecases.NewWalker(newStore(root, cast("0xa", 1, "0xroot", 90)), usecases.WalkerConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	_, err := w.Walk(ctx, root)

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWalker_Walk_BoundsInFlightFetches(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 1000)
	store := newStore(root)
	for i := 0; i < 12; i++ {
		h := fmt.Sprintf("0xr%d", i)
		store.Add(cast(h, uint64(i+1), "0xroot", 900-i))
		store.Add(cast(h+"c", uint64(i+100), h, 800-i))
	}
	src := &MockSource{Store: store, delay: 5 * time.Millisecond}
	w := usecases.NewWalker(src, usecases.WalkerConfig{MaxInFlight: 2}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Nodes != 25 {
		t.Errorf("Nodes: got %d, want 25", tree.Nodes)
	}
	if got := src.maxSeen.Load(); got > 2 {
		t.Errorf("max in-flight: got %d, want <= 2", got)
	}
}

func TestWalker_Walk_DropsForeignAndDuplicateChildren(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	orphan := cast("0xorphan", 5, "", 50)
	src := &StaticSource{replies: map[string][]domain.Cast{
		"0xroot": {
			cast("0xa", 1, "0xroot", 90),
			cast("0xforeign", 2, "0xelsewhere", 80),
			cast("0xa", 1, "0xroot", 90),
			orphan,
		},
		"0xa": {cast("0xroot", authorFID, "0xa", 10)},
	}}
	w := usecases.NewWalker(src, usecases.WalkerConfig{}, nil)

	// Act
	tree, err := w.Walk(context.Background(), root)

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := hashes(tree.Root.Children); !equalStrings(got, []string{"0xa", "0xorphan"}) {
		t.Errorf("children: got %v, want [0xa 0xorphan]", got)
	}
	if got := tree.Root.Children[1].ParentHash; got != "0xroot" {
		t.Errorf("orphan ParentHash: got %q, want 0xroot", got)
	}
	if n := len(tree.Root.Children[0].Children); n != 0 {
		t.Errorf("cycle back to root must be dropped, got %d children", n)
	}
}

func TestWalker_WalkHash_UnknownRootIsNotFound(t *testing.T) {
	// Arrange
	w := usecases.NewWalker(newStore(), usecases.WalkerConfig{}, nil)

	// Act
	_, err := w.WalkHash(context.Background(), domain.CastID{FID: authorFID, Hash: "0xmissing"})

	// Assert
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWalker_WalkHash_ResolvesRoot(t *testing.T) {
	// Arrange
	root := cast("0xroot", authorFID, "", 100)
	w := usecases.NewWalker(newStore(root, cast("0xa", 1, "0xroot", 90)), usecases.WalkerConfig{}, nil)

	// Act
	tree, err := w.WalkHash(context.Background(), root.ID())

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Root.Hash != "0xroot" || tree.Nodes != 2 {
		t.Errorf("got root %s with %d nodes", tree.Root.Hash, tree.Nodes)
	}
}
