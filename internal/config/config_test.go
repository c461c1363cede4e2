package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/upkeep/internal/config"
)

var _ = Describe("DefaultConfig", func() {
	It("fills sensible defaults", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.APIVersion).To(Equal(config.ConfigAPIVersion))
		Expect(cfg.Kind).To(Equal(config.ConfigKind))
		Expect(cfg.MainBranch).To(Equal("main"))
		Expect(cfg.RemoteName).To(Equal("origin"))
		Expect(cfg.TagPattern).To(Equal("v*"))
		Expect(cfg.LockfileGlobs).To(ContainElement("**/lazy-lock.json"))
		Expect(cfg.Defaults.TimeoutSeconds).To(Equal(60))
		Expect(cfg.Defaults.Concurrency).To(Equal(8))
		Expect(cfg.Defaults.Pull.Rebase).To(BeTrue())
		Expect(cfg.Defaults.Pull.Autostash).To(BeTrue())
	})
})

var _ = Describe("Upstream and ResolvedLockfilePath", func() {
	It("joins remote and main branch", func() {
		cfg := config.DefaultConfig()
		cfg.RemoteName = "upstream"
		cfg.MainBranch = "develop"
		Expect(cfg.Upstream()).To(Equal("upstream/develop"))
	})

	It("anchors a relative lockfile at the repo", func() {
		cfg := config.DefaultConfig()
		cfg.RepoPath = "/home/user/project"
		cfg.LockfilePath = "lazy-lock.json"
		Expect(cfg.ResolvedLockfilePath()).To(Equal(filepath.Join("/home/user/project", "lazy-lock.json")))
	})

	It("keeps an absolute lockfile path as-is", func() {
		cfg := config.DefaultConfig()
		cfg.RepoPath = "/home/user/project"
		cfg.LockfilePath = "/etc/locks.json"
		Expect(cfg.ResolvedLockfilePath()).To(Equal("/etc/locks.json"))
	})
})

var _ = Describe("ValidateRepoPath", func() {
	It("accepts a normal absolute path", func() {
		Expect(config.ValidateRepoPath("/home/user/my-project")).To(Succeed())
	})

	It("rejects empty paths", func() {
		Expect(config.ValidateRepoPath("   ")).NotTo(Succeed())
	})

	It("rejects shell metacharacters", func() {
		for _, path := range []string{
			"/tmp/evil;rm -rf",
			"/tmp/$(whoami)",
			"/tmp/pipe|here",
			"/tmp/glob*",
			"/tmp/back`tick",
		} {
			Expect(config.ValidateRepoPath(path)).NotTo(Succeed(), path)
		}
	})
})

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(content string) string {
		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("loads a minimal config and backfills defaults", func() {
		path := write(`
apiVersion: skaphos.io/upkeep/v1beta1
kind: UpkeepConfig
repo_path: /home/user/project
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RepoPath).To(Equal("/home/user/project"))
		Expect(cfg.MainBranch).To(Equal("main"))
		Expect(cfg.Defaults.LogLimit).To(Equal(20))
		Expect(cfg.Defaults.CacheTTLMinutes).To(Equal(30))
		Expect(cfg.LockfileGlobs).NotTo(BeEmpty())
	})

	It("keeps explicit settings over defaults", func() {
		path := write(`
apiVersion: skaphos.io/upkeep/v1beta1
kind: UpkeepConfig
repo_path: /home/user/project
main_branch: trunk
defaults:
  concurrency: 2
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MainBranch).To(Equal("trunk"))
		Expect(cfg.Defaults.Concurrency).To(Equal(2))
	})

	It("rejects an unsupported apiVersion", func() {
		path := write(`
apiVersion: skaphos.io/upkeep/v999
kind: UpkeepConfig
repo_path: /home/user/project
`)
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("apiVersion")))
	})

	It("rejects an unsupported kind", func() {
		path := write(`
apiVersion: skaphos.io/upkeep/v1beta1
kind: SomethingElse
repo_path: /home/user/project
`)
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("kind")))
	})

	It("rejects a repo path with metacharacters", func() {
		path := write(`
apiVersion: skaphos.io/upkeep/v1beta1
kind: UpkeepConfig
repo_path: /home/user/project;rm
`)
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("metacharacters")))
	})

	It("errors for a missing file", func() {
		_, err := config.Load(filepath.Join(dir, "nope.yaml"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Save and reload", func() {
	It("round-trips a config", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "nested", "config.yaml")
		cfg := config.DefaultConfig()
		cfg.RepoPath = "/home/user/project"
		cfg.GitHub = config.GitHub{Owner: "skaphos", Repo: "upkeep"}
		Expect(config.Save(&cfg, path)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.RepoPath).To(Equal(cfg.RepoPath))
		Expect(loaded.GitHub.Owner).To(Equal("skaphos"))
	})
})

var _ = Describe("FindNearestConfigPath", func() {
	It("walks up to the nearest dotfile", func() {
		root := GinkgoT().TempDir()
		nested := filepath.Join(root, "a", "b", "c")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())
		local := filepath.Join(root, "a", config.LocalConfigFilename)
		Expect(os.WriteFile(local, []byte("{}"), 0o644)).To(Succeed())

		found, err := config.FindNearestConfigPath(nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(Equal(local))
	})

	It("returns empty when nothing is found", func() {
		found, err := config.FindNearestConfigPath(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})
})

var _ = Describe("ConfigPath", func() {
	It("treats a yaml override as a file path", func() {
		path, err := config.ConfigPath("/etc/upkeep/custom.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/etc/upkeep/custom.yaml"))
	})

	It("treats a directory override as a config home", func() {
		path, err := config.ConfigPath("/etc/upkeep")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join("/etc/upkeep", "config.yaml")))
	})
})
