package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptograss/railbot/internal/adapter"
	"github.com/cryptograss/railbot/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// mp4Header is enough of an ISO media file for content sniffing.
var mp4Header = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00}, []byte("mp42isom")...)

type fakeHTTP struct {
	headStatus map[string]int
	body       []byte
}

func (f *fakeHTTP) Get(ctx context.Context, url string, result interface{}) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeHTTP) GetResponse(ctx context.Context, url string) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(f.body)),
	}, nil
}

func (f *fakeHTTP) Head(ctx context.Context, url string) (*http.Response, error) {
	status, ok := f.headStatus[url]
	if !ok {
		return nil, fmt.Errorf("connection refused")
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

type fakeFile struct {
	buf bytes.Buffer
}

func (f *fakeFile) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *fakeFile) Close() error                { return nil }

type fakeFileInfo struct {
	size int64
}

func (f fakeFileInfo) Name() string       { return "thumb.jpg" }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }

type fakeFS struct {
	created   map[string]*fakeFile
	thumbSize int64
}

func (f *fakeFS) Create(name string) (adapter.File, error) {
	file := &fakeFile{}
	f.created[name] = file
	return file, nil
}

func (f *fakeFS) Remove(name string) error                 { return nil }
func (f *fakeFS) RemoveAll(path string) error              { return nil }
func (f *fakeFS) ReadFile(name string) ([]byte, error)     { return nil, fs.ErrNotExist }
func (f *fakeFS) MkdirTemp(pattern string) (string, error) { return "/tmp/" + pattern + "x", nil }
func (f *fakeFS) TempDir() string                          { return "/tmp" }

func (f *fakeFS) Stat(name string) (os.FileInfo, error) {
	if f.thumbSize < 0 {
		return nil, fs.ErrNotExist
	}
	return fakeFileInfo{size: f.thumbSize}, nil
}

type fakeRunner struct {
	ffmpegMissing bool
	runs          [][]string
	failOffsets   map[string]bool
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.ffmpegMissing {
		return "", fmt.Errorf("%s not found", name)
	}
	return "/usr/bin/" + name, nil
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.runs = append(r.runs, append([]string{name}, args...))
	// args[2] is the seek offset
	if len(args) > 2 && r.failOffsets[args[2]] {
		return []byte("frame extraction failed"), fmt.Errorf("exit status 1")
	}
	return nil, nil
}

const testCID = "QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt"

func TestFilename(t *testing.T) {
	assert.Equal(t, "Blue_Railroad_Video_"+testCID+".jpg", Filename(testCID))
}

func TestGenerate(t *testing.T) {
	httpClient := &fakeHTTP{
		headStatus: map[string]int{
			"https://gw.example.org/ipfs/" + testCID: http.StatusOK,
		},
		body: mp4Header,
	}
	fsys := &fakeFS{created: make(map[string]*fakeFile), thumbSize: 1024}
	runner := &fakeRunner{}

	g := NewGenerator(httpClient, fsys, runner, []string{"https://gw.example.org/"})

	path, err := g.Generate(context.Background(), testCID)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/"+Filename(testCID), path)

	// the video was downloaded into the temp dir
	require.Len(t, fsys.created, 1)
	for name, file := range fsys.created {
		assert.Contains(t, name, "video_"+testCID+".mp4")
		assert.Equal(t, mp4Header, file.buf.Bytes())
	}

	// one ffmpeg invocation at the default offset
	require.Len(t, runner.runs, 1)
	assert.Equal(t, "ffmpeg", runner.runs[0][0])
	assert.Contains(t, runner.runs[0], "2.0")
}

func TestGenerateRetriesEarlierOffset(t *testing.T) {
	httpClient := &fakeHTTP{
		headStatus: map[string]int{
			"https://gw.example.org/ipfs/" + testCID: http.StatusOK,
		},
		body: mp4Header,
	}
	fsys := &fakeFS{created: make(map[string]*fakeFile), thumbSize: 1024}
	runner := &fakeRunner{failOffsets: map[string]bool{"2.0": true}}

	g := NewGenerator(httpClient, fsys, runner, []string{"https://gw.example.org"})

	_, err := g.Generate(context.Background(), testCID)
	require.NoError(t, err)

	require.Len(t, runner.runs, 2)
	assert.Contains(t, runner.runs[0], "2.0")
	assert.Contains(t, runner.runs[1], "0.5")
}

func TestGenerateFailures(t *testing.T) {
	workingHead := map[string]int{
		"https://gw.example.org/ipfs/" + testCID: http.StatusOK,
	}

	tests := []struct {
		name        string
		cid         string
		http        *fakeHTTP
		runner      *fakeRunner
		thumbSize   int64
		errContains string
	}{
		{
			name:        "empty cid",
			cid:         "",
			http:        &fakeHTTP{},
			runner:      &fakeRunner{},
			errContains: "no cid",
		},
		{
			name:        "ffmpeg missing",
			cid:         testCID,
			http:        &fakeHTTP{},
			runner:      &fakeRunner{ffmpegMissing: true},
			errContains: "ffmpeg not found",
		},
		{
			name:        "no gateway answers",
			cid:         testCID,
			http:        &fakeHTTP{headStatus: map[string]int{}},
			runner:      &fakeRunner{},
			errContains: "no working IPFS gateway",
		},
		{
			name:        "gateway serves html instead of video",
			cid:         testCID,
			http:        &fakeHTTP{headStatus: workingHead, body: []byte("<html>blocked</html>")},
			runner:      &fakeRunner{},
			errContains: "not a video",
		},
		{
			name:        "ffmpeg output empty",
			cid:         testCID,
			http:        &fakeHTTP{headStatus: workingHead, body: mp4Header},
			runner:      &fakeRunner{},
			thumbSize:   0,
			errContains: "empty image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := &fakeFS{created: make(map[string]*fakeFile), thumbSize: tt.thumbSize}
			g := NewGenerator(tt.http, fsys, tt.runner, []string{"https://gw.example.org"})

			_, err := g.Generate(context.Background(), tt.cid)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestFindWorkingGatewayPicksResponsive(t *testing.T) {
	httpClient := &fakeHTTP{
		headStatus: map[string]int{
			"https://bad.example.org/ipfs/" + testCID:  http.StatusBadGateway,
			"https://good.example.org/ipfs/" + testCID: http.StatusOK,
		},
	}
	g := NewGenerator(httpClient, &fakeFS{created: make(map[string]*fakeFile)}, &fakeRunner{},
		[]string{"https://bad.example.org", "https://good.example.org"})

	url, err := g.findWorkingGateway(context.Background(), testCID)
	require.NoError(t, err)
	assert.Equal(t, "https://good.example.org/ipfs/"+testCID, url)
}

func TestFindWorkingGatewayNoGateways(t *testing.T) {
	g := NewGenerator(&fakeHTTP{}, &fakeFS{created: make(map[string]*fakeFile)}, &fakeRunner{}, nil)

	_, err := g.findWorkingGateway(context.Background(), testCID)
	assert.Error(t, err)
}
