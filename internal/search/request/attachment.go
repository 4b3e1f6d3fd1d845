package request

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// LoadAttachments reads each file, enforcing the size limit before reading
// and sniffing the content type from the bytes
func LoadAttachments(paths []string, maxBytes int64) ([]types.Attachment, error) {
	out := make([]types.Attachment, 0, len(paths))
	for _, path := range paths {
		a, err := loadAttachment(path, maxBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func loadAttachment(path string, maxBytes int64) (types.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Attachment{}, apperrors.Wrapf(err, apperrors.ErrAttachmentUnreadable, "%s", path)
	}
	if info.IsDir() {
		return types.Attachment{}, apperrors.Newf(apperrors.ErrAttachmentUnreadable, "%s is a directory", path)
	}
	if info.Size() > maxBytes {
		return types.Attachment{}, apperrors.Newf(apperrors.ErrAttachmentTooLarge,
			"%s is %d bytes (limit %d)", path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, apperrors.Wrapf(err, apperrors.ErrAttachmentUnreadable, "%s", path)
	}

	return types.Attachment{
		Name: filepath.Base(path),
		MIME: mediaType(mimetype.Detect(data)),
		Data: data,
	}, nil
}

// mediaType drops parameters such as charset
func mediaType(m *mimetype.MIME) string {
	mt, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(mt)
}
