/*
Copyright 2019 The Osdadm Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package gpt

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

// RefreshPartitionCache asks the kernel to re-read the device's partition
// table (BLKRRPART). Without this, partitions created on the device do not
// show up under /dev until the next reboot or udev trigger.
func RefreshPartitionCache(device string) error {
	logger.Debugf("refreshing kernel partition cache for %s", device)
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "failed to open %s for partition reread", device)
	}
	defer f.Close()

	if _, err := unix.IoctlRetInt(int(f.Fd()), unix.BLKRRPART); err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "BLKRRPART ioctl failed on %s", device)
	}
	return nil
}
