package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"menuca.ca/restotool/internal/bitmap"
	"menuca.ca/restotool/internal/escpos"
	"menuca.ca/restotool/internal/link"
)

type recordingLink struct {
	mu      sync.Mutex
	sends   [][][]byte
	sendErr error
	block   chan struct{}
}

func (l *recordingLink) EnsureConnection(ctx context.Context) error { return nil }

func (l *recordingLink) Send(ctx context.Context, frames ...[]byte) error {
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sends = append(l.sends, frames)
	return nil
}

func (l *recordingLink) sent() [][][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sends
}

type imageMap map[string]image.Image

func (m imageMap) Load(ctx context.Context, ref string) (image.Image, error) {
	img, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("no image %q", ref)
	}
	return img, nil
}

type stubRenderer struct{ width int }

func (r *stubRenderer) RenderText(text string, width int, fontSize float64) (image.Image, error) {
	r.width = width
	return solid(width, 16, color.Black), nil
}

func newTestService(t *testing.T, l Link, opts ...Option) *Service {
	opts = append(opts, WithLogger(zaptest.NewLogger(t)))
	s := NewService(l, NewBuilder(0), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrintTextSendsOneFrame(t *testing.T) {
	l := &recordingLink{}
	s := newTestService(t, l)

	job, err := ParseJob("text", "HELLO", "")
	require.NoError(t, err)
	require.NoError(t, s.Print(context.Background(), job))

	sent := l.sent()
	require.Len(t, sent, 1)
	want, _ := NewBuilder(0).Text("HELLO", job.Text)
	assert.Equal(t, [][]byte{want}, sent[0])
}

func TestPrintBuildFailureSendsNothing(t *testing.T) {
	l := &recordingLink{}
	s := newTestService(t, l, WithImageSource(imageMap{}))

	job, err := ParseJob("text", "x", `{"width": 9}`)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Print(context.Background(), job), escpos.ErrInvalidParameter)

	job, err = ParseJob("image", "missing", "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Print(context.Background(), job), escpos.ErrInvalidParameter)

	assert.Empty(t, l.sent())
}

func TestPrintImage(t *testing.T) {
	l := &recordingLink{}
	s := newTestService(t, l, WithImageSource(imageMap{"logo": solid(384, 8, color.White)}))

	job, err := ParseJob("image", "logo", "")
	require.NoError(t, err)
	require.NoError(t, s.Print(context.Background(), job))

	sent := l.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x1b, 0x40}, sent[0][0][:2])
}

func TestPrintTextImageUsesPaperWidth(t *testing.T) {
	l := &recordingLink{}
	r := &stubRenderer{}
	s := newTestService(t, l, WithTextRenderer(r))

	job, err := ParseJob("textimage", "Order 42", "")
	require.NoError(t, err)
	require.NoError(t, s.Print(context.Background(), job))
	assert.Equal(t, DefaultPaperWidth, r.width)
}

func TestPrintWithoutRenderer(t *testing.T) {
	s := newTestService(t, &recordingLink{})
	for _, kind := range []string{"textimage", "html", "image"} {
		job, err := ParseJob(kind, "x", "")
		require.NoError(t, err)
		assert.ErrorIs(t, s.Print(context.Background(), job), escpos.ErrInvalidParameter, kind)
	}
}

func TestPrintPropagatesLinkErrors(t *testing.T) {
	l := &recordingLink{sendErr: fmt.Errorf("%w: broken pipe", link.ErrIOFailure)}
	s := newTestService(t, l)

	err := s.EndPrint(context.Background())
	assert.ErrorIs(t, err, link.ErrIOFailure)
	assert.Equal(t, KindIOFailure, Classify(err))
}

func TestEndPrintAndSelfTest(t *testing.T) {
	l := &recordingLink{}
	s := newTestService(t, l)

	require.NoError(t, s.BeginPrint(context.Background()))
	require.NoError(t, s.EndPrint(context.Background()))
	require.NoError(t, s.SelfTest(context.Background()))

	sent := l.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, [][]byte{{0x1d, 'V', 'B', 1, 0x1b, '@'}}, sent[0])
	assert.Equal(t, [][]byte{{0x1f, 0x11, 0x04}}, sent[1])
}

func TestConcurrentJobsAreSerialised(t *testing.T) {
	l := &recordingLink{}
	s := newTestService(t, l)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := ParseJob("text", fmt.Sprintf("job %d", i), "")
			if assert.NoError(t, err) {
				assert.NoError(t, s.Print(context.Background(), job))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, l.sent(), 20)
}

func TestSubmitHonoursContext(t *testing.T) {
	l := &recordingLink{block: make(chan struct{})}
	s := newTestService(t, l)
	defer close(l.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.SelfTest(ctx), context.DeadlineExceeded)
}

func TestClosedService(t *testing.T) {
	s := NewService(&recordingLink{}, NewBuilder(0))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SelfTest(context.Background()), ErrClosed)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("%w: bad", escpos.ErrInvalidParameter), KindInvalidParameter},
		{fmt.Errorf("%w: bad", ErrEncoding), KindEncodingError},
		{fmt.Errorf("%w: bad", bitmap.ErrInvalidDimensions), KindInvalidDimensions},
		{fmt.Errorf("%w: bad", link.ErrLinkUnavailable), KindLinkUnavailable},
		{fmt.Errorf("%w: bad", link.ErrIOFailure), KindIOFailure},
		{errors.New("boom"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err))
	}
}
