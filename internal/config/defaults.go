package config

// Default participant-facing copy.
const (
	DefaultIntro1 = "In this experiment, you will either SEE a color, HEAR a color, or both.\n\n" +
		"Your task is to press the button that matches the perceived color.\n\n" +
		"Respond as quickly and accurately as possible."
	DefaultIntro2 = "Press the RED button\nwhen you perceive RED\n\n" +
		"Press the BLUE button\nwhen you perceive BLUE"
	DefaultPracticeDone = "Great job! Now you will be moving on to the real task.\n\n" +
		"Respond as quickly and accurately as possible."
	DefaultBreak    = "One minute break..."
	DefaultClosing  = "Great job! You have completed the task.\n\nThank you for participating!"
	DefaultContinue = "*Press space bar to begin*"
)

// DefaultConfig returns the standard four-block experiment: 120 trials per
// block split evenly over the four types (30 each) with an ITI drawn from
// [1.25, 1.5] s, the last block ramping the ITI down from 1.25 s to 0.375 s.
func DefaultConfig() *Config {
	types := []string{"V", "A", "AVC", "AVI"}
	blocks := make([]BlockConfig, 0, 4)
	for n := 1; n <= 4; n++ {
		blocks = append(blocks, BlockConfig{
			Number:      n,
			Types:       append([]string(nil), types...),
			TotalTrials: 120,
			ITIMin:      1.25,
			ITIMax:      1.5,
		})
	}
	blocks[3].Adapting = true
	blocks[3].AdaptStart = 1.25
	blocks[3].AdaptEnd = 0.375

	return &Config{
		Version: Version,
		Session: SessionConfig{
			DataDir:            "AV_Stress_Data",
			Shape:              "circle",
			FixationMs:         500,
			ResponseWindowMs:   2000,
			InstructionMs:      1000,
			BreakMs:            2000,
			ContinueKey:        "space",
			AbortFile:          "ABORT",
			InhibitScreensaver: true,
		},
		Keys: KeysConfig{Red: "r", Blue: "b"},
		Stimuli: StimuliConfig{
			Dir:        "sounds",
			Ext:        ".mp3",
			SampleRate: 44100,
			BufferMs:   20,
		},
		Display: DisplayConfig{
			Surface:    SurfaceWindow,
			Fullscreen: true,
			Width:      1024,
			Height:     768,
		},
		Practice: PracticeConfig{
			Enabled:     true,
			Types:       []string{"A", "V"},
			TotalTrials: 6,
			ITIMin:      1.25,
			ITIMax:      1.5,
		},
		Blocks: blocks,
		Text: TextConfig{
			Intro:        []string{DefaultIntro1, DefaultIntro2},
			PracticeDone: DefaultPracticeDone,
			Break:        DefaultBreak,
			Closing:      DefaultClosing,
			Continue:     DefaultContinue,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  20,
			MaxBackups: 5,
		},
	}
}
