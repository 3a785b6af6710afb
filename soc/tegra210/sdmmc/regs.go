// Tegra210 SDMMC/SDHCI host controller driver
// https://github.com/usbarmory/tamago
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdmmc

// SDHCI v4 standard register block, offsets relative to the controller base
// (grounded on soc/nxp/usdhc/usdhc.go's constant-block style, values taken
// from the Tegra X1 SDHCI-compatible map described in
// original_source/fusee/common/sdmmc/sdmmc_core.h).
const (
	SDHCI_DMA_ADDRESS = 0x00

	SDHCI_BLOCK_SIZE  = 0x04
	BLOCK_SIZE_DMA512K = 0x7000

	SDHCI_BLOCK_COUNT = 0x06
	SDHCI_ARGUMENT    = 0x08

	SDHCI_TRANSFER_MODE          = 0x0c
	TRANSFER_MODE_DMA_ENABLE     = 0
	TRANSFER_MODE_BLOCK_COUNT_EN = 1
	TRANSFER_MODE_AUTO_CMD12     = 2
	TRANSFER_MODE_AUTO_CMD_MASK  = 0b11 << 2
	TRANSFER_MODE_DATA_DIR_READ  = 4
	TRANSFER_MODE_MULTI_BLOCK    = 5

	SDHCI_COMMAND        = 0x0e
	COMMAND_CMD_INDEX    = 8
	COMMAND_CMD_TYPE     = 6
	COMMAND_DATA_PRESENT = 5
	COMMAND_CMD_INDEX_EN = 4
	COMMAND_CMD_CRC_EN   = 3
	COMMAND_RESP_TYPE    = 0

	SDHCI_RESPONSE = 0x10

	SDHCI_PRESENT_STATE = 0x24
	PRESENT_STATE_CMD_INHIBIT  = 0
	PRESENT_STATE_DAT_INHIBIT  = 1
	PRESENT_STATE_DAT0_LVL     = 20

	SDHCI_HOST_CONTROL  = 0x28
	HOST_CONTROL_DTW    = 1
	HOST_CONTROL_HS     = 2
	HOST_CONTROL_DMASEL = 3
	HOST_CONTROL_DTW8   = 5

	SDHCI_POWER_CONTROL   = 0x29
	POWER_CONTROL_SD_BUS  = 0
	POWER_CONTROL_VOLTAGE = 1

	SDHCI_CLOCK_CONTROL           = 0x2c
	CLOCK_CONTROL_INTERNAL_ENABLE = 0
	CLOCK_CONTROL_INTERNAL_STABLE = 1
	CLOCK_CONTROL_SD_ENABLE       = 2
	CLOCK_CONTROL_DIV_LO          = 8
	CLOCK_CONTROL_DIV_HI          = 6

	SDHCI_TIMEOUT_CONTROL = 0x2e

	SDHCI_SOFTWARE_RESET     = 0x2f
	SOFTWARE_RESET_CMD       = 1
	SOFTWARE_RESET_DAT       = 2

	SDHCI_INT_STATUS     = 0x30
	SDHCI_INT_ENABLE     = 0x34
	SDHCI_SIGNAL_ENABLE  = 0x38
	INT_STATUS_CMD_COMPLETE  = 0
	INT_STATUS_XFER_COMPLETE = 1
	INT_STATUS_DMA_INTERRUPT = 3
	INT_STATUS_BUFFER_READ_READY = 5
	INT_STATUS_ERROR_MASK    = 0x017F0000

	SDHCI_AUTO_CMD_STATUS = 0x3c

	SDHCI_HOST_CONTROL2          = 0x3e
	HOST_CONTROL2_UHS_MODE       = 0
	HOST_CONTROL2_VDD180         = 3
	HOST_CONTROL2_EXEC_TUNING    = 6
	HOST_CONTROL2_SAMPLING_CLOCK = 7
	HOST_CONTROL2_HOST_VER4_EN   = 12
	HOST_CONTROL2_ADDR_64BIT_EN  = 13
	HOST_CONTROL2_PRESET_VAL_EN  = 15

	SDHCI_CAPABILITIES = 0x40
	CAPABILITIES_ADMA2 = 19
	CAPABILITIES_64BIT = 28

	SDHCI_ADMA_ERROR      = 0x54
	SDHCI_ADMA_ADDRESS    = 0x58
	SDHCI_ADMA_ADDRESS_HI = 0x5c
)

// UHS mode encodings of HOST_CONTROL2[2:0].
const (
	UHS_MODE_SDR12  = 0
	UHS_MODE_SDR25  = 1
	UHS_MODE_SDR50  = 2
	UHS_MODE_SDR104 = 3
	UHS_MODE_DDR50  = 4
	UHS_MODE_HS400  = 5
)

// Tegra vendor-specific register block, modeled on
// original_source/fusee/common/sdmmc/sdmmc_core.h.
const (
	VENDOR_CLOCK_CNTRL        = 0x100
	VENDOR_CLOCK_CNTRL_TAP    = 16
	VENDOR_CLOCK_CNTRL_TRIM   = 24
	VENDOR_CLOCK_CNTRL_SPI_MODE_CLKEN_OVERRIDE = 2
	VENDOR_CLOCK_CNTRL_PADPIPE_CLKEN_OVERRIDE  = 3
	VENDOR_CLOCK_CNTRL_SDR50_TUNING            = 5
	VENDOR_CLOCK_CNTRL_SDMMC_CLK               = 0

	VENDOR_SYS_SW_CNTRL = 0x104

	VENDOR_CAP_OVERRIDES          = 0x10c
	VENDOR_CAP_OVERRIDES_DQS_TRIM = 8

	VENDOR_IO_TRIM_CNTRL     = 0x128
	VENDOR_IO_TRIM_CNTRL_SEL_VREG = 2

	VENDOR_DLLCAL_CFG          = 0x1b0
	VENDOR_DLLCAL_CFG_CALIBRATE = 31

	VENDOR_DLLCAL_CFG_STA           = 0x1bc
	VENDOR_DLLCAL_CFG_STA_ACTIVE    = 31

	VENDOR_TUNING_CNTRL0            = 0x1c0
	VENDOR_TUNING_CNTRL0_SET_BY_HW  = 17
	VENDOR_TUNING_CNTRL0_MULTIPLIER = 6
	VENDOR_TUNING_CNTRL0_DIVIDER    = 3
	VENDOR_TUNING_CNTRL0_TRIES      = 13

	VENDOR_TUNING_CNTRL1 = 0x1c4

	SDMEMCOMPPADCTRL               = 0x1e0
	SDMEMCOMPPADCTRL_E_INPUT_E_PWRD = 31

	AUTO_CAL_CONFIG        = 0x1e4
	AUTO_CAL_CONFIG_START  = 31
	AUTO_CAL_CONFIG_ENABLE = 29
	AUTO_CAL_CONFIG_PD_OFFSET = 8
	AUTO_CAL_CONFIG_PU_OFFSET = 0

	AUTO_CAL_STATUS        = 0x1ec
	AUTO_CAL_STATUS_ACTIVE = 31

	IO_SPARE               = 0x1f0
	IO_SPARE_ONE_CYCLE_DELAY = 19
)

// CMD / ACMD opcodes used by this driver (spec.md §6: CMD0,1,2,3,6,7,8,9,10,
// 11,12,13,17,18,19,21,23,24,25,55 and ACMD6,41,42,51).
const (
	GO_IDLE_STATE        = 0
	SEND_OP_COND         = 1
	ALL_SEND_CID         = 2
	SEND_RELATIVE_ADDR   = 3
	SWITCH               = 6
	SELECT_CARD          = 7
	SEND_IF_COND         = 8
	SEND_CSD             = 9
	SEND_CID             = 10
	VOLTAGE_SWITCH       = 11
	STOP_TRANSMISSION    = 12
	SEND_STATUS          = 13
	READ_SINGLE_BLOCK    = 17
	READ_MULTIPLE_BLOCK  = 18
	SEND_TUNING_BLOCK    = 19
	SEND_TUNING_BLOCK_HS200 = 21
	SET_BLOCK_COUNT      = 23
	WRITE_BLOCK          = 24
	WRITE_MULTIPLE_BLOCK = 25
	APP_CMD              = 55

	ACMD_SET_BUS_WIDTH = 6
	ACMD_SD_SEND_OP_COND = 41
	ACMD_SET_CLR_CARD_DETECT = 42
	ACMD_SEND_SCR      = 51

	// response field positions within the 32-bit card status (R1)
	STATUS_CURRENT_STATE = 9
	STATUS_SWITCH_ERROR  = 7
	STATUS_APP_CMD       = 5
	STATUS_ERROR_BITS    = 19 // bits 19-31 comprise the error mask (CARD_ECC_FAILED..OUT_OF_RANGE minus reserved)

	CURRENT_STATE_IDENT  = 2
	CURRENT_STATE_STBY   = 3
	CURRENT_STATE_TRAN   = 4
)

// response types (SDHCI command register RESP_TYPE_SELECT field)
const (
	RESP_NONE = 0b00
	RESP_136  = 0b01
	RESP_48   = 0b10
	RESP_48_BUSY = 0b11
)
