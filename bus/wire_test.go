package bus

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	It("should round-trip a message frame", func() {
		f := Frame{
			Sender:     "Speed",
			Target:     "SimulationBus",
			RealTarget: "Control",
			Message:    "Speed:10.0",
		}

		data, err := EncodeFrame(f)
		Expect(err).To(BeNil())

		decoded, err := DecodeFrame(data)
		Expect(err).To(BeNil())
		Expect(decoded).To(Equal(f))
	})

	It("should prefer real_target over the outer channel address", func() {
		f := Frame{
			Sender:     "Speed",
			Target:     "SimulationBus",
			RealTarget: "Control",
			Message:    "Speed:10.0",
		}

		Expect(f.IntendedRecipient()).To(Equal(NodeID("Control")))

		env := f.Envelope()
		Expect(env.Recipient).To(Equal(NodeID("Control")))
		Expect(env.Sender).To(Equal(NodeID("Speed")))
		Expect(env.Payload).To(Equal("Speed:10.0"))
	})

	It("should fall back to the outer target when real_target is absent", func() {
		f := Frame{
			Sender:  "Speed",
			Target:  "Control",
			Message: "Speed:10.0",
		}

		Expect(f.IntendedRecipient()).To(Equal(NodeID("Control")))
	})

	It("should recognize registration frames", func() {
		f := RegistrationFrame("SimulationBus")

		Expect(f.IsRegistration()).To(BeTrue())

		data, err := EncodeFrame(f)
		Expect(err).To(BeNil())
		Expect(string(data)).To(Equal(`{"register":"SimulationBus"}`))
	})

	It("should reject malformed frames", func() {
		_, err := DecodeFrame([]byte(`not json`))
		Expect(err).To(MatchError(ErrMalformedFrame))

		_, err = DecodeFrame([]byte(`{}`))
		Expect(err).To(MatchError(ErrMalformedFrame))
	})
})
