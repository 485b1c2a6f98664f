package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jmagar/scoutmcp/internal/sshpool"
)

type fakeSFTPFile struct {
	*bytes.Reader
	written *bytes.Buffer
	failAt  int // if >0, Write fails once this many bytes have been written
}

func (f *fakeSFTPFile) Write(p []byte) (int, error) {
	if f.failAt > 0 && f.written.Len()+len(p) > f.failAt {
		return 0, errors.New("disk full")
	}
	return f.written.Write(p)
}
func (f *fakeSFTPFile) Close() error { return nil }

type fakeSFTPClient struct {
	files    map[string]*fakeSFTPFile
	missing  map[string]bool
	failOpen map[string]bool
}

func (c *fakeSFTPClient) Open(path string) (sshpool.SFTPFile, error) {
	if c.missing[path] {
		return nil, errors.New("no such file")
	}
	f, ok := c.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return f, nil
}

func (c *fakeSFTPClient) Create(path string) (sshpool.SFTPFile, error) {
	if c.failOpen[path] {
		return nil, errors.New("cannot create")
	}
	if c.files == nil {
		c.files = map[string]*fakeSFTPFile{}
	}
	if f, ok := c.files[path]; ok {
		return f, nil
	}
	f := &fakeSFTPFile{written: &bytes.Buffer{}}
	c.files[path] = f
	return f, nil
}

func (c *fakeSFTPClient) Close() error { return nil }

type sftpFakeSession struct {
	sftpClient sshpool.SFTPClient
	failSFTP   bool
}

func (s *sftpFakeSession) Run(ctx context.Context, cmd string) (string, string, int, error) {
	return "", "", 0, nil
}
func (s *sftpFakeSession) NewSFTPClient() (sshpool.SFTPClient, error) {
	if s.failSFTP {
		return nil, errors.New("channel open failed")
	}
	return s.sftpClient, nil
}
func (s *sftpFakeSession) Open() bool  { return true }
func (s *sftpFakeSession) Close() error { return nil }

func TestTransfer_StreamsInChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200*1024) // spans multiple 64 KiB chunks
	srcClient := &fakeSFTPClient{files: map[string]*fakeSFTPFile{
		"/src/file": {Reader: bytes.NewReader(payload), written: &bytes.Buffer{}},
	}}
	dstClient := &fakeSFTPClient{}

	src := &sftpFakeSession{sftpClient: srcClient}
	dst := &sftpFakeSession{sftpClient: dstClient}

	written, err := Transfer(context.Background(), src, dst, "/src/file", "/dst/file")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != int64(len(payload)) {
		t.Errorf("written = %d, want %d", written, len(payload))
	}
	if dstClient.files["/dst/file"].written.Len() != len(payload) {
		t.Errorf("destination content length = %d, want %d", dstClient.files["/dst/file"].written.Len(), len(payload))
	}
}

func TestTransfer_SourceMissingIsTypedError(t *testing.T) {
	srcClient := &fakeSFTPClient{missing: map[string]bool{"/gone": true}}
	dstClient := &fakeSFTPClient{}
	src := &sftpFakeSession{sftpClient: srcClient}
	dst := &sftpFakeSession{sftpClient: dstClient}

	_, err := Transfer(context.Background(), src, dst, "/gone", "/dst/file")
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestTransfer_WriteFailureReportsBytesWritten(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 150*1024)
	srcClient := &fakeSFTPClient{files: map[string]*fakeSFTPFile{
		"/src/file": {Reader: bytes.NewReader(payload), written: &bytes.Buffer{}},
	}}
	dstClient := &fakeSFTPClient{}
	src := &sftpFakeSession{sftpClient: srcClient}
	dst := &sftpFakeSession{sftpClient: dstClient}

	// Prime the destination file with a write that fails after one chunk.
	f, _ := dstClient.Create("/dst/file")
	f.(*fakeSFTPFile).failAt = 64 * 1024

	written, err := Transfer(context.Background(), src, dst, "/src/file", "/dst/file")
	if err == nil {
		t.Fatal("expected transfer error")
	}
	if written == 0 {
		t.Error("expected partial bytes-written to be reported")
	}
}

var _ io.Reader = (*fakeSFTPFile)(nil)
