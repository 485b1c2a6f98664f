package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/jmagar/scoutmcp/internal/scouterr"
	"github.com/jmagar/scoutmcp/internal/sshpool"
	"github.com/jmagar/scoutmcp/internal/validate"
)

// transferChunkSize is the fixed chunk size used when streaming a transfer:
// no temporary file is ever materialized on the mediating host, so the
// chunk size bounds this process's own memory use.
const transferChunkSize = 64 * 1024

// Transfer streams sourcePath from src to destPath on dst, 64 KiB at a
// time, with no intermediate buffering beyond one chunk. It is the only
// write operation the core performs on a remote host.
func Transfer(ctx context.Context, src, dst sshpool.Session, sourcePath, destPath string) (bytesWritten int64, err error) {
	cleanSrc, err := validate.Path(sourcePath)
	if err != nil {
		return 0, err
	}
	cleanDst, err := validate.Path(destPath)
	if err != nil {
		return 0, err
	}

	srcSFTP, err := src.NewSFTPClient()
	if err != nil {
		return 0, fmt.Errorf("%w: opening source sftp channel: %v", scouterr.ErrConnection, err)
	}
	defer srcSFTP.Close()

	srcFile, err := srcSFTP.Open(cleanSrc)
	if err != nil {
		return 0, &scouterr.TransferError{BytesWritten: 0, Reason: fmt.Sprintf("source missing: %v", err)}
	}
	defer srcFile.Close()

	dstSFTP, err := dst.NewSFTPClient()
	if err != nil {
		return 0, fmt.Errorf("%w: opening target sftp channel: %v", scouterr.ErrConnection, err)
	}
	defer dstSFTP.Close()

	dstFile, err := dstSFTP.Create(cleanDst)
	if err != nil {
		return 0, &scouterr.TransferError{BytesWritten: 0, Reason: fmt.Sprintf("cannot create destination: %v", err)}
	}
	defer dstFile.Close()

	buf := make([]byte, transferChunkSize)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, &scouterr.TransferError{BytesWritten: written, Reason: ctx.Err().Error()}
		default:
		}

		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, writeErr := dstFile.Write(buf[:n]); writeErr != nil {
				return written, &scouterr.TransferError{BytesWritten: written, Reason: writeErr.Error()}
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &scouterr.TransferError{BytesWritten: written, Reason: readErr.Error()}
		}
	}
}
