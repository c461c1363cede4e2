package update_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/upkeep/internal/update"
)

// MockRunner implements gitx.Runner for testing.
type MockRunner struct {
	// Responses maps "dir:args" keys to (output, error) pairs.
	Responses map[string]MockResponse
	// Calls records every key in call order.
	Calls []string
}

type MockResponse struct {
	Output string
	Err    error
}

func (m *MockRunner) Run(_ context.Context, dir string, args ...string) (string, error) {
	key := dir + ":" + strings.Join(args, " ")
	m.Calls = append(m.Calls, key)
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return "", fmt.Errorf("unexpected call: dir=%q args=%v", dir, args)
}

var _ = Describe("Machine.Apply", func() {
	opts := update.Options{
		RepoPath:      "/repo",
		MainBranch:    "main",
		RemoteName:    "origin",
		LockfileGlobs: []string{"lazy-lock.json", "**/lazy-lock.json"},
		PullRebase:    true,
		PullAutostash: true,
	}

	It("pulls cleanly on the main branch", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "main"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:pull --rebase --autostash":   {Output: "Updating abc123..def456\nFast-forward"},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(update.StateSuccess))
		Expect(res.Branch).To(Equal("main"))
		Expect(res.RollbackCommit).To(Equal("abc123"))
		Expect(res.RolledBack).To(BeFalse())
		Expect(machine.State()).To(Equal(update.StateSuccess))
	})

	It("captures the rollback point before any mutation", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "main"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:pull --rebase --autostash":   {Output: "ok"},
		}}
		machine := update.NewMachine(mock, opts)
		_, err := machine.Apply(context.Background())
		Expect(err).NotTo(HaveOccurred())
		rollbackIdx := indexOf(mock.Calls, "/repo:rev-parse HEAD")
		fetchIdx := indexOf(mock.Calls, "/repo:fetch origin main")
		Expect(rollbackIdx).To(BeNumerically(">=", 0))
		Expect(fetchIdx).To(BeNumerically(">", rollbackIdx))
	})

	It("rolls back when the pull output contains conflict markers", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "main"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			// exit 0 but conflicted output: markers alone must trigger rollback
			"/repo:pull --rebase --autostash": {Output: "CONFLICT (content): Merge conflict in a.go"},
			"/repo:merge --abort":             {Output: ""},
			"/repo:rebase --abort":            {Err: errors.New("no rebase in progress")},
			"/repo:reset --hard abc123":       {Output: "HEAD is now at abc123"},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		var conflict *update.ConflictError
		Expect(errors.As(err, &conflict)).To(BeTrue())
		Expect(conflict.Marker).To(Equal("CONFLICT"))
		Expect(res.RolledBack).To(BeTrue())
		Expect(res.RollbackCommit).To(Equal("abc123"))
		Expect(mock.Calls).To(ContainElement("/repo:reset --hard abc123"))
	})

	It("treats fetch failure as terminal without rolling back", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "main"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Err: errors.New("could not resolve host")},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(res).To(BeNil())
		Expect(mock.Calls).NotTo(ContainElement("/repo:reset --hard abc123"))
	})

	It("reports RollbackFailedError when the reset also fails", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "main"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:pull --rebase --autostash":   {Err: errors.New("merge failed")},
			"/repo:merge --abort":               {Output: ""},
			"/repo:rebase --abort":              {Output: ""},
			"/repo:reset --hard abc123":         {Err: errors.New("disk full")},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		var rbFailed *update.RollbackFailedError
		Expect(errors.As(err, &rbFailed)).To(BeTrue())
		Expect(rbFailed.Commit).To(Equal("abc123"))
		Expect(res.RolledBack).To(BeFalse())
	})

	It("refuses to run on an unresolvable branch", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "HEAD"},
		}}
		machine := update.NewMachine(mock, opts)
		_, err := machine.Apply(context.Background())
		Expect(err).To(MatchError(update.ErrUnknownBranch))
	})

	It("merges upstream main into a feature branch with stashing", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD":                {Output: "feature"},
			"/repo:rev-parse HEAD":                             {Output: "abc123"},
			"/repo:status --porcelain=v1":                      {Output: " M src/main.go"},
			"/repo:fetch origin main":                          {Output: ""},
			"/repo:stash push -u -m upkeep: pre-merge stash":   {Output: "Saved working directory"},
			"/repo:merge --no-edit origin/main":                {Output: "Merge made by the 'ort' strategy."},
			"/repo:stash pop":                                  {Output: "Dropped refs/stash@{0}"},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(update.StateSuccess))
		Expect(mock.Calls).To(ContainElement("/repo:stash pop"))
	})

	It("skips stashing on a clean feature branch", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "feature"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:merge --no-edit origin/main": {Output: "Already up to date."},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(update.StateSuccess))
		Expect(mock.Calls).NotTo(ContainElement(ContainSubstring("stash push")))
	})

	It("auto-discards lockfile-only changes before applying", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "feature"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: " M lazy-lock.json"},
			"/repo:checkout -- lazy-lock.json":  {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:merge --no-edit origin/main": {Output: "Already up to date."},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.State).To(Equal(update.StateSuccess))
		// Lockfile dirt was discarded, so no stash was needed.
		Expect(mock.Calls).NotTo(ContainElement(ContainSubstring("stash push")))
	})

	It("rolls back a failed merge on a feature branch", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref HEAD": {Output: "feature"},
			"/repo:rev-parse HEAD":              {Output: "abc123"},
			"/repo:status --porcelain=v1":       {Output: ""},
			"/repo:fetch origin main":           {Output: ""},
			"/repo:merge --no-edit origin/main": {Output: "Automatic merge failed; fix conflicts", Err: errors.New("exit 1")},
			"/repo:merge --abort":               {Output: ""},
			"/repo:rebase --abort":              {Err: errors.New("no rebase in progress")},
			"/repo:reset --hard abc123":         {Output: ""},
		}}
		machine := update.NewMachine(mock, opts)
		res, err := machine.Apply(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(res.RolledBack).To(BeTrue())
	})
})

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}
