package kvstore

import "github.com/pkg/errors"

var errUnknownEncoding = errors.New("unknown value encoding")
