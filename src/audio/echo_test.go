package audio

import "testing"

func TestEcho(t *testing.T) {
	e := newEcho(1000)
	p := newEchoParams()
	expectNoError(t, p.set("enabled", "true"))
	expectNoError(t, p.set("delay", "10"))
	expectNoError(t, p.set("feedback", "0.5"))
	expectNoError(t, p.set("mix", "0.5"))
	e.applyParams(p)

	samples := make([]float64, 30)
	samples[0] = 1
	e.process(samples)
	expectNearlyEqual(t, samples[0], 1)
	expectNearlyEqual(t, samples[5], 0)
	expectNearlyEqual(t, samples[10], 0.5)
	expectNearlyEqual(t, samples[20], 0.25)
}

func TestEchoParams(t *testing.T) {
	p := newEchoParams()
	expectNoError(t, p.set("feedback", "2"))
	expectNearlyEqual(t, p.feedback, maxEchoFeedback)
	expectError(t, p.set("width", "1"))
	expectError(t, p.set("enabled", "yes"))
	expectError(t, p.set("mix", "wet"))

	p.applyJSON([]byte(`{"enabled":true,"mix":0.7}`))
	expectEqual(t, p.enabled, true)
	expectNearlyEqual(t, p.mix, 0.7)
	expectNearlyEqual(t, p.delay, 250)

	// short delays are raised to the minimum
	e := newEcho(1000)
	p.delay = 1
	e.applyParams(p)
	expectEqual(t, len(e.line), 10)

	// growing keeps the position
	e.pos = 5
	p.delay = 20
	e.applyParams(p)
	expectEqual(t, len(e.line), 20)
	expectEqual(t, e.pos, 5)
}

func TestTransitiveValue(t *testing.T) {
	tv := newTransitiveValue(1000, 0)
	tv.linear(10, 1)
	samples := make([]float64, 20)
	for i := range samples {
		samples[i] = 1
	}
	tv.applyTo(samples)
	expectNearlyEqual(t, samples[0], 0)
	expectNearlyEqual(t, samples[6], 0.5)
	expectNearlyEqual(t, samples[15], 1)
	expectNearlyEqual(t, tv.value, 1)
	expectEqual(t, tv.kind, transitionNone)

	tv.linear(10, 0.5)
	expectEqual(t, tv.step(), false)
	expectNearlyEqual(t, tv.value, 1)
	for i := 0; i < 9; i++ {
		tv.step()
	}
	expectEqual(t, tv.step(), true)
	expectNearlyEqual(t, tv.value, 0.5)
}
