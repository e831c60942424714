package bus

import (
	gomock "go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		mockCtrl *gomock.Controller
		registry *Registry
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		registry = NewRegistry()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject a second registration for the same id", func() {
		first := NewMockReceiver(mockCtrl)
		second := NewMockReceiver(mockCtrl)

		Expect(registry.Register("X", first)).To(Succeed())

		err := registry.Register("X", second)

		Expect(err).To(MatchError(ErrDuplicateRegistration))

		// The first endpoint remains authoritative.
		first.EXPECT().Receive("payload")
		env := MakeEnvelopeBuilder().
			WithSender("Y").
			WithRecipient("X").
			WithPayload("payload").
			Build()
		Expect(registry.Dispatch(env)).To(Succeed())
	})

	It("should dispatch by exact recipient match", func() {
		brake := NewMockReceiver(mockCtrl)
		traction := NewMockReceiver(mockCtrl)

		Expect(registry.Register("Brake", brake)).To(Succeed())
		Expect(registry.Register("Traction", traction)).To(Succeed())

		brake.EXPECT().Receive("Apply Brakes")

		env := MakeEnvelopeBuilder().
			WithSender("Control").
			WithRecipient("Brake").
			WithPayload("Apply Brakes").
			Build()
		Expect(registry.Dispatch(env)).To(Succeed())
	})

	It("should drop envelopes for unknown recipients", func() {
		env := MakeEnvelopeBuilder().
			WithSender("Control").
			WithRecipient("Nobody").
			WithPayload("Apply Brakes").
			Build()

		err := registry.Dispatch(env)

		Expect(err).To(MatchError(ErrUnknownRecipient))
	})

	It("should allow re-registration after deregistration", func() {
		first := NewMockReceiver(mockCtrl)
		second := NewMockReceiver(mockCtrl)

		Expect(registry.Register("X", first)).To(Succeed())
		registry.Deregister("X")
		Expect(registry.Register("X", second)).To(Succeed())
	})
})
