package main

import (
	"context"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"

	vfs "github.com/nimbusfs/vfs"
	"github.com/nimbusfs/vfs/internal/providers/local"
	"github.com/nimbusfs/vfs/internal/providers/mem"
)

var diskRoot string

// newService wires a Service with a mem:// and a disk:// provider
// registered, the way any consumer embedding this core would.
func newService(ctx context.Context) (*vfs.Service, error) {
	svc := vfs.New(opt, prometheus.DefaultRegisterer)

	if _, err := svc.RegisterProvider("mem", mem.New()); err != nil {
		return nil, err
	}

	root := diskRoot
	if root == "" {
		dir, err := os.MkdirTemp("", "vfsctl-disk-*")
		if err != nil {
			return nil, err
		}
		root = dir
	} else {
		expanded, err := homedir.Expand(root)
		if err != nil {
			return nil, err
		}
		root = expanded
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
	}
	if _, err := svc.RegisterProvider("disk", local.New(root)); err != nil {
		return nil, err
	}

	return svc, nil
}
