package uploader

import "github.com/moyoez/cloudsend/types"

// Classify splits entries into those sent in the single batch request and
// those sent as chunk sessions. An entry whose size equals threshold is
// chunked. Input order is kept within each group.
func Classify(entries []types.UploadEntry, threshold int64) (direct, chunked []types.UploadEntry) {
	directIdx, chunkedIdx := classifyIndices(entries, threshold)
	direct = make([]types.UploadEntry, 0, len(directIdx))
	for _, i := range directIdx {
		direct = append(direct, entries[i])
	}
	chunked = make([]types.UploadEntry, 0, len(chunkedIdx))
	for _, i := range chunkedIdx {
		chunked = append(chunked, entries[i])
	}
	return direct, chunked
}

func classifyIndices(entries []types.UploadEntry, threshold int64) (direct, chunked []int) {
	for i, entry := range entries {
		if entry.SizeBytes < threshold {
			direct = append(direct, i)
		} else {
			chunked = append(chunked, i)
		}
	}
	return direct, chunked
}
