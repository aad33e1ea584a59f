package fuzztests

import (
	"context"
	"testing"
	"time"

	"envkit/internal/adalite"
	"envkit/internal/diag"
	"envkit/internal/engine"
	"envkit/internal/source"
	"envkit/internal/testkit"
)

// parseTimeout is the maximum time allowed for one input. Anything slower
// points at a loop in error recovery or in lookups.
const parseTimeout = 5 * time.Second

func FuzzParserBuildsTree(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)

		fs := source.NewFileSet()
		file := fs.Get(fs.AddVirtual("fuzz.adb", input))
		bag := diag.NewBag(128)
		res := adalite.Parse(adalite.NewKinds(), fs, file, 1, 1, diag.BagReporter{Bag: bag})
		if err := res.Tree.Validate(); err != nil {
			t.Fatalf("invalid tree: %v", err)
		}
		if res.Clean {
			if err := testkit.CheckSpanInvariants(res.Tree, fs); err != nil {
				t.Fatalf("span invariants: %v", err)
			}
		}
	})
}

// FuzzEngineNoHang loads the input as a unit, populates its environments
// and resolves every name in it. Named links may form cycles, so this also
// checks that lookups terminate.
func FuzzEngineNoHang(f *testing.F) {
	addCorpusSeeds(f)
	f.Add([]byte("package A is end A;\npackage body A is use A; end A;\n"))
	f.Add([]byte("separate (Main) procedure Main is begin Main; end Main;\n"))

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)

		ctx, cancel := context.WithTimeout(context.Background(), parseTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			lang := adalite.NewLanguage()
			e, err := adalite.NewEngine(engine.Config{MaxDiagnostics: 128}, lang,
				adalite.NewMemProvider(lang, map[string]string{"fuzz.adb": string(input)}))
			if err != nil {
				done <- err
				return
			}
			if _, err := lang.Check(ctx, e, "fuzz.adb"); err != nil && ctx.Err() == nil {
				done <- nil
				return
			}
			done <- testkit.CheckEnvInvariants(ctx, e)
		}()

		select {
		case err := <-done:
			if err != nil && ctx.Err() == nil {
				t.Fatalf("engine invariants: %v\ninput (%d bytes): %q", err, len(input), truncateForLog(input, 200))
			}
		case <-ctx.Done():
			t.Fatalf("engine hang detected: took longer than %v\ninput (%d bytes): %q",
				parseTimeout, len(input), truncateForLog(input, 200))
		}
	})
}

// truncateForLog truncates input for logging purposes
func truncateForLog(input []byte, maxLen int) []byte {
	if len(input) <= maxLen {
		return input
	}
	return append(input[:maxLen:maxLen], []byte("...")...)
}
