package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/upkeep/internal/github"
	"github.com/skaphos/upkeep/internal/model"
)

const releasesJSON = `[
	{
		"tag_name": "v1.1.0",
		"name": "Sprint release",
		"body": "Notes here",
		"prerelease": false,
		"html_url": "https://github.com/skaphos/upkeep/releases/tag/v1.1.0",
		"published_at": "2026-08-01T12:00:00Z"
	},
	{
		"tag_name": "v1.2.0-rc1",
		"name": "Release candidate",
		"prerelease": true,
		"html_url": "https://github.com/skaphos/upkeep/releases/tag/v1.2.0-rc1",
		"published_at": "2026-08-10T12:00:00Z"
	}
]`

// stubRunner implements github.CommandRunner with canned responses.
type stubRunner struct {
	output string
	err    error
	calls  []string
}

func (s *stubRunner) Run(_ context.Context, dir string, args ...string) (string, error) {
	s.calls = append(s.calls, dir+":"+strings.Join(args, " "))
	return s.output, s.err
}

var _ = Describe("CLIClient", func() {
	It("lists releases through gh api", func() {
		runner := &stubRunner{output: releasesJSON}
		client := &github.CLIClient{Runner: runner}
		metas, err := client.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).NotTo(HaveOccurred())
		Expect(metas).To(HaveLen(2))
		Expect(metas[0].TagName).To(Equal("v1.1.0"))
		Expect(metas[0].Title).To(Equal("Sprint release"))
		Expect(metas[1].Prerelease).To(BeTrue())
		Expect(runner.calls).To(ContainElement(":api repos/skaphos/upkeep/releases"))
	})

	It("propagates gh failures", func() {
		runner := &stubRunner{err: errors.New("gh: not logged in")}
		client := &github.CLIClient{Runner: runner}
		_, err := client.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).To(HaveOccurred())
	})

	It("errors on unparseable gh output", func() {
		runner := &stubRunner{output: "not json"}
		client := &github.CLIClient{Runner: runner}
		_, err := client.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).To(MatchError(ContainSubstring("parse gh releases")))
	})

	It("probes availability with --version", func() {
		runner := &stubRunner{output: "gh version 2.40.0"}
		client := &github.CLIClient{Runner: runner}
		Expect(client.Available(context.Background())).To(BeTrue())
		Expect(runner.calls).To(ContainElement(":--version"))
	})
})

var _ = Describe("HTTPClient", func() {
	It("fetches and decodes the releases endpoint", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/repos/skaphos/upkeep/releases"))
			Expect(r.Header.Get("Accept")).To(Equal("application/vnd.github.v3+json"))
			_, _ = w.Write([]byte(releasesJSON))
		}))
		defer server.Close()

		client := &github.HTTPClient{BaseURL: server.URL}
		metas, err := client.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).NotTo(HaveOccurred())
		Expect(metas).To(HaveLen(2))
		Expect(metas[1].TagName).To(Equal("v1.2.0-rc1"))
	})

	It("errors on non-200 responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusForbidden)
		}))
		defer server.Close()

		client := &github.HTTPClient{BaseURL: server.URL}
		_, err := client.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).To(MatchError(ContainSubstring("GitHub API error")))
	})
})

var _ = Describe("Fallback", func() {
	failing := &github.CLIClient{Runner: &stubRunner{err: errors.New("gh missing")}}

	It("returns the first success", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(releasesJSON))
		}))
		defer server.Close()

		fallback := &github.Fallback{Clients: []github.Client{
			failing,
			&github.HTTPClient{BaseURL: server.URL},
		}}
		metas, err := fallback.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).NotTo(HaveOccurred())
		Expect(metas).To(HaveLen(2))
	})

	It("returns the last error when everything fails", func() {
		fallback := &github.Fallback{Clients: []github.Client{failing}}
		_, err := fallback.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).To(HaveOccurred())
	})

	It("errors with no configured clients", func() {
		var metas []model.ReleaseMeta
		fallback := &github.Fallback{}
		metas, err := fallback.ListReleases(context.Background(), "skaphos", "upkeep")
		Expect(err).To(HaveOccurred())
		Expect(metas).To(BeNil())
	})
})
