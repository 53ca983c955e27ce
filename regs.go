package mn864xx

// Register addresses and bits of the MN864xx HDMI transmitter.
const (
	regTSYSCTRL  = 0x7005
	tsysctrlHDMI = 1 << 7

	regTSRST      = 0x7006
	tsrstENCSRST  = 1 << 1
	tsrstHDCPSRST = 1 << 4

	regTMONREG = 0x7008
	tmonregHPD = 1 << 3

	regTDPCMODE = 0x7009

	regUPDCTRL     = 0x7011
	updctrlALLUPD  = 1 << 7
	updctrlAVIIUPD = 1 << 6
	updctrlCLKUPD  = 1 << 4
	updctrlVIFUPD  = 1 << 2
	updctrlCSCUPD  = 1 << 0

	regVINCNT      = 0x7040
	vincntVIFFILEN = 1 << 6

	regVMUTECNT         = 0x705f
	vmutecntLineWidth90 = 1 << 4
	vmutecntMuteNormal  = 2

	regCSCMOD  = 0x70c0
	regC420SET = 0x70c2
	regOUTWSET = 0x70c3

	regPKTENA   = 0x7202
	regINFENA   = 0x7203
	infenaAVIEN = 1 << 6

	regAKESTA  = 0x7a84
	akestaBusy = 1 << 0
	regAKESRST = 0x7a88

	regHDCPEN    = 0x7a8b
	hdcpenEncDis = 0x05

	// Three DisplayPort receiver status bytes of the MN86471A.
	regDPStatus = 0x76e1
)
