package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should calculate the period", func() {
		Expect(Freq(10 * Hz).Period()).To(Equal(VTimeInSec(0.1)))
	})

	It("should get this tick", func() {
		Expect(Freq(1 * KHz).ThisTick(0.0015)).To(
			BeNumerically("~", 0.002, 1e-12))
		Expect(Freq(1 * KHz).ThisTick(0.002)).To(
			BeNumerically("~", 0.002, 1e-12))
	})

	It("should get next tick", func() {
		Expect(Freq(1 * KHz).NextTick(0.002)).To(
			BeNumerically("~", 0.003, 1e-12))
		Expect(Freq(1 * KHz).NextTick(0.0015)).To(
			BeNumerically("~", 0.002, 1e-12))
	})

	It("should get the time after n cycles", func() {
		Expect(Freq(1 * KHz).NCyclesLater(3, 0.002)).To(
			BeNumerically("~", 0.005, 1e-12))
	})
})
