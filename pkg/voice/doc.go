// Package voice drives the hands-free conversation loop.
//
// A Controller owns one Session and runs a single event loop. Capture
// results, chat replies, playback completions and user intents (open, close,
// interrupt) are all serialized through that loop and applied with Reduce,
// a pure transition function that returns the next Session and the effects
// to run.
//
//	idle --open--> listening --final--> thinking --reply--> speaking
//	                   ^                    |                   |
//	                   +------ failure -----+---- playback end -+
//
// Each open, close and interrupt advances the session generation. Work
// started under an older generation can still complete, but its result is
// dropped by Reduce and its playback is fenced off by the audio manager.
//
// Basic usage:
//
//	ctrl, err := voice.New(engine, retriever, synth, manager,
//		voice.WithLocale("en-IN"),
//	)
//	ctrl.OnChange(func(s voice.Session) { fmt.Println(s.Status) })
//	ctrl.Open()
//	defer ctrl.Shutdown()
package voice
