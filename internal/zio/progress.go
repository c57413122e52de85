package zio

import "github.com/zarrio/zarrio/api"

func reportProgress(opts api.Options, datasetPath string, written int) {
	if opts.ProgressCallback == nil {
		return
	}
	opts.ProgressCallback(api.ProgressEvent{DatasetPath: datasetPath, ChunksWritten: written})
}
