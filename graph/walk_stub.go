//go:build !linux

package graph

import "errors"

func lstatMeta(path string) (RawMeta, error) {
	return RawMeta{}, errors.New("live mount traversal is only supported on linux")
}
