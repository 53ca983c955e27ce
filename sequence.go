package mn864xx

import "periph.io/x/devices/v3/mn864xx/cmdq"

func wr(addr uint16, v byte) cmdq.Op {
	return cmdq.Op{Kind: cmdq.OpWrite, Addr: addr, Data: []byte{v}}
}

func mask(addr uint16, v, m byte) cmdq.Op {
	return cmdq.Op{Kind: cmdq.OpMask, Addr: addr, Value: v, Mask: m}
}

func waitSet(addr uint16, m byte) cmdq.Op {
	return cmdq.Op{Kind: cmdq.OpWaitSet, Addr: addr, Mask: m}
}

func waitClear(addr uint16, m byte) cmdq.Op {
	return cmdq.Op{Kind: cmdq.OpWaitClear, Addr: addr, Mask: m}
}

func delay(t uint16) cmdq.Op {
	return cmdq.Op{Kind: cmdq.OpDelay, Duration: t}
}

// preEnableSeq quiesces InfoFrames and HDCP before the link is retrained.
var preEnableSeq = []cmdq.Op{
	wr(regINFENA, 0x00),
	wr(regTSRST, tsrstENCSRST|tsrstHDCPSRST),
	// The vendor recipe writes the HDCP disable value to TSRST, not HDCPEN.
	wr(regTSRST, hdcpenEncDis),
	wr(regAKESRST, 0xff),
	waitClear(regAKESTA, akestaBusy),
}

var disableSeq = []cmdq.Op{
	wr(regVMUTECNT, vmutecntLineWidth90|vmutecntMuteNormal),
	wr(regINFENA, 0x00),
}

// mn86471aModeSeq programs video mode vic on the MN86471A. dp holds the three
// DisplayPort status bytes read from regDPStatus.
func mn86471aModeSeq(vic byte, dp [3]byte) []cmdq.Op {
	return []cmdq.Op{
		waitSet(0x761e, 0x77),
		waitSet(0x761f, 0x77),
		waitSet(0x7669, 0x01),
		wr(0x76d9, (dp[0]&0x1f)|(dp[0]<<5)),
		wr(0x76da, (dp[1]&0x7c)|((dp[0]>>3)&3)|((dp[1]<<5)&0x80)),
		wr(0x76db, 0x80|((dp[1]>>3)&0xf)),
		wr(0x76e4, 0x01),
		wr(regTSYSCTRL, tsysctrlHDMI),
		wr(regVINCNT, vincntVIFFILEN),
		wr(0x7071, 0),
		wr(0x7062, vic),
		wr(0x765a, 0),
		wr(0x7062, vic|0x80),
		wr(0x7215, 0x28), // aspect
		wr(0x7217, vic),
		wr(0x7218, 0),
		wr(regCSCMOD, 0xdc),
		wr(regC420SET, 0xaa),
		wr(regTDPCMODE, 0x4a),
		wr(regOUTWSET, 0x00),
		wr(0x70c4, 0x08),
		wr(0x70c5, 0x08),
		wr(0x7096, 0xff),
		wr(0x7027, 0x00),
		wr(0x7020, 0x20),
		wr(0x700b, 0x01),
		wr(regPKTENA, 0x20),
		wr(0x7096, 0xff),
		wr(regINFENA, infenaAVIEN),
		wr(regUPDCTRL, updctrlALLUPD|updctrlAVIIUPD|updctrlCLKUPD|updctrlVIFUPD|updctrlCSCUPD),
		waitSet(0x7096, 0x80),

		mask(0x7216, 0x00, 0x80),
		wr(0x7218, 0x00),

		wr(0x7096, 0xff),
		wr(regVMUTECNT, vmutecntLineWidth90|vmutecntMuteNormal),
		wr(0x7016, 0x04),
		wr(0x7a88, 0xff),
		wr(0x7a83, 0x88),
		wr(0x7204, 0x40),

		waitSet(0x7096, 0x80),

		wr(0x7006, 0x02),
		wr(0x7020, 0x21),
		wr(0x7a8b, 0x00),
		wr(0x7020, 0x21),

		wr(regVMUTECNT, vmutecntLineWidth90),
	}
}

var mn86471aAudioSeq = [2][]cmdq.Op{
	{
		wr(0x70b3, 0x00),
		wr(0x70b7, 0x0b),
		wr(0x70a8, 0x24),
		mask(0x70b9, 0x06, 0x06),
		mask(0x70b6, 0x02, 0x0f),
		mask(0x70ba, 0x40, 0x70),
		mask(0x70b2, 0x20, 0xe0),
		mask(0x7257, 0x00, 0xff),
		mask(0x70b0, 0x01, 0x21),
		mask(0x70ba, 0x00, 0x88),
		mask(0x70b9, 0x01, 0x01),
	},
	{
		wr(0x7ed8, 0x01),
		mask(0x70b4, 0x00, 0x3e),
		mask(0x70b5, 0x79, 0xff),
		mask(0x70ab, 0x00, 0xff),
		mask(0x70b6, 0x02, 0x3f),
		mask(0x70b7, 0x0b, 0x0f),
		mask(0x70ac, 0x00, 0xff),
		mask(0x70bd, 0x00, 0xff),
		wr(0x7204, 0x10),
		wr(0x7011, 0xa2),
		waitSet(0x7096, 0x80),
		wr(0x7096, 0xff),
		mask(0x7203, 0x10, 0x10),
		wr(0x70b1, 0xc0),
	},
}

// mn864729ModeSeq programs video mode vic on the MN864729. CUH-12xx boards
// need a different value at 0x10c5.
func mn864729ModeSeq(vic byte, model Model) []cmdq.Op {
	var r10c5 byte
	if model == CUH12xx {
		r10c5 = 0x03
	}
	return []cmdq.Op{
		mask(0x6005, 0x01, 0x01),
		wr(0x6a03, 0x47),

		waitSet(0x60f8, 0xff),
		waitSet(0x60f9, 0x01),
		wr(0x6a01, 0x4d),
		waitSet(0x60f9, 0x1a),

		mask(0x1e00, 0x00, 0x21),
		mask(0x1e02, 0x00, 0x70),
		delay(0x012c),
		wr(0x6020, 0x00),
		delay(0x0032),
		wr(0x7402, 0x1c),
		wr(0x6020, 0x04),
		wr(regTSYSCTRL, tsysctrlHDMI),
		wr(0x10c7, 0x38),
		wr(0x1e02, 0x88),
		wr(0x1e00, 0x66),
		wr(0x100c, 0x01),
		wr(regTSYSCTRL, tsysctrlHDMI),

		wr(0x7009, 0x00),
		wr(0x7040, 0x42),
		wr(0x7225, 0x28),
		wr(0x7227, vic),
		wr(0x7228, 0x00),
		wr(0x7070, vic),
		wr(0x7071, vic|0x80),
		wr(0x7072, 0x00),
		wr(0x7073, 0x00),
		wr(0x7074, 0x00),
		wr(0x7075, 0x00),
		wr(0x70c4, 0x0a),
		wr(0x70c5, 0x0a),
		wr(0x70c2, 0x00),
		wr(0x70fe, 0x12),
		wr(0x70c3, 0x10),
		wr(0x10c5, r10c5),
		wr(0x10f6, 0xff),
		wr(0x7202, 0x20),
		wr(0x7203, 0x60),
		wr(0x7011, 0xd5),

		waitSet(0x10f6, 0x80),
		mask(0x7226, 0x00, 0x80),
		mask(0x7228, 0x00, 0xff),
		delay(0x012c),
		wr(0x7204, 0x40),
		waitClear(0x7204, 0x40),
		wr(0x7a8b, 0x05),
		mask(0x1e02, 0x70, 0x70),
		mask(0x1034, 0x02, 0x02),
		mask(0x1e00, 0x01, 0x01),
		wr(regVMUTECNT, vmutecntLineWidth90),
		wr(regHDCPEN, 0x00),
	}
}

var mn864729AudioSeq = [2][]cmdq.Op{
	{
		wr(0x70aa, 0x00),
		wr(0x70af, 0x07),
		wr(0x70a9, 0x5a),
		mask(0x70af, 0x06, 0x06),
		mask(0x70af, 0x02, 0x0f),
		mask(0x70b3, 0x02, 0x0f),
		mask(0x70ae, 0x80, 0xe0),
		mask(0x70ae, 0x01, 0x07),
		mask(0x70ac, 0x01, 0x21),
		mask(0x70ab, 0x80, 0x88),
		mask(0x70a9, 0x01, 0x01),
	},
	{
		wr(0x70b0, 0x01),
		mask(0x70b0, 0x00, 0xff),
		mask(0x70b1, 0x79, 0xff),
		mask(0x70b2, 0x00, 0xff),
		mask(0x70b3, 0x02, 0xff),
		mask(0x70b4, 0x0b, 0x0f),
		mask(0x70b5, 0x00, 0xff),
		mask(0x70b6, 0x00, 0xff),
		wr(0x10f6, 0xff),
		wr(0x7011, 0xa2),
		waitSet(0x10f6, 0xa2),
		mask(0x7267, 0x00, 0xff),
		wr(0x7204, 0x10),
		waitClear(0x7204, 0x10),
		wr(0x10f6, 0xff),
		mask(0x7203, 0x10, 0x10),
		wr(0x70a8, 0xc0),
	},
}
