// SPDX-License-Identifier: MIT
package termstyle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/liggitt/tabwriter"

	"github.com/skaphos/upkeep/internal/termstyle"
)

var _ = Describe("Colorize", func() {
	esc := string([]byte{tabwriter.Escape})

	It("wraps the value in escape-guarded ANSI codes", func() {
		got := termstyle.Colorize(true, "ok", termstyle.Healthy)
		Expect(got).To(Equal(esc + termstyle.Green + esc + "ok" + esc + termstyle.Reset + esc))
	})

	It("passes the value through when disabled", func() {
		Expect(termstyle.Colorize(false, "ok", termstyle.Warn)).To(Equal("ok"))
	})

	It("leaves empty values alone", func() {
		Expect(termstyle.Colorize(true, "", termstyle.Error)).To(BeEmpty())
	})

	It("leaves values without a color alone", func() {
		Expect(termstyle.Colorize(true, "ok", "")).To(Equal("ok"))
	})
})

var _ = Describe("DriftColor", func() {
	It("warns for behind", func() {
		Expect(termstyle.DriftColor("behind")).To(Equal(termstyle.Warn))
	})

	It("informs for ahead", func() {
		Expect(termstyle.DriftColor("ahead")).To(Equal(termstyle.Info))
	})
})
