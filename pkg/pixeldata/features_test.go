package pixeldata

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/jpfielding/dcmpix/pkg/dcm/tag"
	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
)

// scenario holds state for a single scenario
type scenario struct {
	codecs  *CodecList
	codec   *countingCodec
	element *Element
	noted   Handle
	err     error
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	s := &scenario{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*s = scenario{}
		return ctx, nil
	})

	sc.Step(`^an empty pixel data element with a doubling codec for "([^"]*)"$`, s.emptyElementWithCodec)
	sc.Step(`^a failing codec for "([^"]*)"$`, s.failingCodec)
	sc.Step(`^I put the 8 bit samples "([^"]*)"$`, s.putSamples)
	sc.Step(`^I choose the "([^"]*)" representation$`, s.choose)
	sc.Step(`^I remove the original representation in favour of "([^"]*)"$`, s.removeOriginal)
	sc.Step(`^I remove the "([^"]*)" representation$`, s.remove)
	sc.Step(`^I note the current representation$`, s.noteCurrent)
	sc.Step(`^the call succeeds$`, s.callSucceeds)
	sc.Step(`^the call fails with "([^"]*)"$`, s.callFailsWith)
	sc.Step(`^the element holds (\d+) representations?$`, s.holds)
	sc.Step(`^the original representation is "([^"]*)"$`, s.originalIs)
	sc.Step(`^the current representation is "([^"]*)"$`, s.currentIs)
	sc.Step(`^the current representation is unchanged$`, s.currentUnchanged)
	sc.Step(`^the length for "([^"]*)" is (\d+)$`, s.lengthIs)
	sc.Step(`^the codec encoded (\d+) times?$`, s.encoded)
}

func keyNamed(name string) Key {
	ts := transfer.Lookup(name)
	if !ts.IsEncapsulated() {
		return NativeKey()
	}
	return Key{Syntax: ts}
}

func (s *scenario) emptyElementWithCodec(name string) error {
	s.codec = &countingCodec{syntax: transfer.Lookup(name)}
	codecs, err := NewCodecList(s.codec)
	if err != nil {
		return err
	}
	s.codecs = codecs
	s.element = New(tag.PixelData, 0, WithCodecs(codecs))
	return nil
}

func (s *scenario) failingCodec(name string) error {
	return s.codecs.Register(&countingCodec{syntax: transfer.Lookup(name), fail: true})
}

func (s *scenario) putSamples(samples string) error {
	buf, err := hex.DecodeString(strings.ReplaceAll(samples, " ", ""))
	if err != nil {
		return err
	}
	s.err = s.element.PutUint8Array(buf)
	return nil
}

func (s *scenario) choose(name string) error {
	k := keyNamed(name)
	s.err = s.element.ChooseRepresentation(k.Syntax, k.Param)
	return nil
}

func (s *scenario) removeOriginal(name string) error {
	k := keyNamed(name)
	s.err = s.element.RemoveOriginalRepresentation(k.Syntax, k.Param)
	return nil
}

func (s *scenario) remove(name string) error {
	k := keyNamed(name)
	s.err = s.element.RemoveRepresentation(k.Syntax, k.Param)
	return nil
}

func (s *scenario) noteCurrent() error {
	h, ok := s.element.store.Current()
	if !ok {
		return errors.New("no current representation")
	}
	s.noted = h
	return nil
}

func (s *scenario) callSucceeds() error {
	if s.err != nil {
		return fmt.Errorf("expected success, got %w", s.err)
	}
	return nil
}

func (s *scenario) callFailsWith(kind string) error {
	var te *TranscodeError
	var ok bool
	switch kind {
	case "TranscodeError":
		ok = errors.As(s.err, &te)
	case "IllegalCall":
		ok = errors.Is(s.err, ErrIllegalCall)
	case "IllegalParameter":
		ok = errors.Is(s.err, ErrIllegalParameter)
	case "RepresentationNotFound":
		ok = errors.Is(s.err, ErrRepresentationNotFound)
	default:
		return fmt.Errorf("unknown failure kind %q", kind)
	}
	if !ok {
		return fmt.Errorf("expected %s, got %v", kind, s.err)
	}
	return nil
}

func (s *scenario) holds(n int) error {
	if got := len(s.element.Representations()); got != n {
		return fmt.Errorf("expected %d representations, got %d", n, got)
	}
	return nil
}

func (s *scenario) originalIs(name string) error {
	k, err := s.element.OriginalRepresentation()
	if err != nil {
		return err
	}
	if !k.ConformsTo(keyNamed(name)) {
		return fmt.Errorf("original is %s, expected %s", k, name)
	}
	return nil
}

func (s *scenario) currentIs(name string) error {
	k, err := s.element.CurrentRepresentation()
	if err != nil {
		return err
	}
	if !k.ConformsTo(keyNamed(name)) {
		return fmt.Errorf("current is %s, expected %s", k, name)
	}
	return nil
}

func (s *scenario) currentUnchanged() error {
	h, _ := s.element.store.Current()
	if h != s.noted {
		return fmt.Errorf("current moved from %+v to %+v", s.noted, h)
	}
	return nil
}

func (s *scenario) lengthIs(name string, n int) error {
	got, err := s.element.GetLength(transfer.Lookup(name))
	if err != nil {
		return err
	}
	if int(got) != n {
		return fmt.Errorf("expected length %d, got %d", n, got)
	}
	return nil
}

func (s *scenario) encoded(n int) error {
	if s.codec.encodes != n {
		return fmt.Errorf("expected %d encodes, got %d", n, s.codec.encodes)
	}
	return nil
}
