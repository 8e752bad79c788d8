package recorder

import "time"

// Observers fans controller telemetry out to every non-nil member.
type Observers []Observer

// FrameCaptured implements capture.Observer.
func (o Observers) FrameCaptured(d time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.FrameCaptured(d)
		}
	}
}

// CaptureFailed implements capture.Observer.
func (o Observers) CaptureFailed() {
	for _, obs := range o {
		if obs != nil {
			obs.CaptureFailed()
		}
	}
}

func (o Observers) SessionFinished(result string) {
	for _, obs := range o {
		if obs != nil {
			obs.SessionFinished(result)
		}
	}
}

func (o Observers) LogWriteFailed() {
	for _, obs := range o {
		if obs != nil {
			obs.LogWriteFailed()
		}
	}
}

func (o Observers) LidarPresence(detected bool) {
	for _, obs := range o {
		if obs != nil {
			obs.LidarPresence(detected)
		}
	}
}
