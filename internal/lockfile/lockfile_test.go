package lockfile_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/upkeep/internal/lockfile"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeLockfile := func(content string) string {
		path := filepath.Join(dir, "lazy-lock.json")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("parses a valid lockfile", func() {
		path := writeLockfile(`{
			"plenary.nvim": {"commit": "abc123", "branch": "master"},
			"telescope.nvim": {"commit": "def456", "branch": "main"}
		}`)
		lf, err := lockfile.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(lf).To(HaveLen(2))
		Expect(lf["plenary.nvim"].Commit).To(Equal("abc123"))
		Expect(lf["telescope.nvim"].Branch).To(Equal("main"))
	})

	It("treats a missing file as empty", func() {
		lf, err := lockfile.Load(filepath.Join(dir, "does-not-exist.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lf).To(BeEmpty())
	})

	It("returns an empty lockfile plus the parse error for malformed JSON", func() {
		path := writeLockfile(`{not json`)
		lf, err := lockfile.Load(path)
		Expect(err).To(HaveOccurred())
		Expect(lf).To(BeEmpty())
	})

	It("normalizes a JSON null to an empty lockfile", func() {
		path := writeLockfile(`null`)
		lf, err := lockfile.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(lf).NotTo(BeNil())
		Expect(lf).To(BeEmpty())
	})
})

var _ = Describe("Names", func() {
	It("returns names in sorted order", func() {
		lf := lockfile.Lockfile{
			"zeta":  {Commit: "a"},
			"alpha": {Commit: "b"},
			"mid":   {Commit: "c"},
		}
		Expect(lf.Names()).To(Equal([]string{"alpha", "mid", "zeta"}))
	})
})
