package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrRemoteTransient     = errors.New("remote drive transient failure")
	ErrDownloaderTransient = errors.New("local downloader transient failure")
)

func wrapRemote(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRemoteTransient, err)
}

func wrapDownloader(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDownloaderTransient, err)
}
