// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

import "time"

const (
	extCSDPartitionConfigIndex = 179
	partitionAccessMask        = 0x7
)

// SelectPartition switches the active eMMC hardware partition by writing
// EXT_CSD's PARTITION_CONFIG.PARTITION_ACCESS field via CMD6 (spec §9
// supplement, grounded on sdmmc_select_partition, sdmmc.c:3522). It is a
// no-op, returning Unsupported, on any card that is not MMC.
func (hw *Host) SelectPartition(p Partition) error {
	hw.Lock()
	defer hw.Unlock()

	if !hw.card.MMC {
		return errorf(Unsupported, "SelectPartition", "card is not an eMMC device")
	}

	cfg := hw.card.PartitionConfig&^partitionAccessMask | byte(p)&partitionAccessMask

	if err := hw.switchMMC(extCSDPartitionConfigIndex, cfg, mmcSwitchAccessModeAccessWriteByte); err != nil {
		return err
	}

	hw.Platform.Sleep(time.Duration(hw.card.PartitionSwitchTimeUs) * time.Microsecond)

	hw.card.PartitionConfig = cfg
	hw.card.PartitionSettingDone = true

	return nil
}

// rpmbFrameSize is the fixed 512-byte RPMB data frame size (spec §9
// supplement).
const rpmbFrameSize = 512

// ReadRPMBCounter issues the RPMB read-counter request sequence: a
// single-block write of a request frame to the RPMB partition followed by a
// single-block read of the response frame (spec §9 supplement, grounded on
// sdmmc_rpmb, sdmmc.c). Each transfer is framed with CMD23 (SET_BLOCK_COUNT)
// as RPMB requires, rather than relying on an implicit stop-transmission.
// The raw 512-byte response frame is returned unparsed; interpreting its MAC
// and nonce fields is left to the caller.
func (hw *Host) ReadRPMBCounter(request []byte) (response []byte, err error) {
	hw.Lock()
	defer hw.Unlock()

	if !hw.card.MMC {
		return nil, errorf(Unsupported, "ReadRPMBCounter", "card is not an eMMC device")
	}

	if len(request) != rpmbFrameSize {
		return nil, errorf(Unsupported, "ReadRPMBCounter", "request frame must be %d bytes", rpmbFrameSize)
	}

	if err := hw.send(SET_BLOCK_COUNT, 1, RESP_48, nil, 0); err != nil {
		return nil, err
	}

	if err := hw.send(WRITE_BLOCK, 0, RESP_48, request, rpmbFrameSize); err != nil {
		return nil, err
	}

	response = make([]byte, rpmbFrameSize)

	if err := hw.send(SET_BLOCK_COUNT, 1, RESP_48, nil, 0); err != nil {
		return nil, err
	}

	if err := hw.send(READ_SINGLE_BLOCK, 0, RESP_48, response, rpmbFrameSize); err != nil {
		return nil, err
	}

	return response, nil
}
