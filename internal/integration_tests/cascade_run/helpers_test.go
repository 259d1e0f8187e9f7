package integration_tests

import "github.com/vk/paramcascade/internal/model"

var params = model.Params{H: 160, B1: 350, L1: 2600}

// convectorHCL is a project with one housing, a spacer used twice, an
// auxiliary fastener, a purchased heat exchanger, two drawings and two
// flat patterns.
const convectorHCL = `
	document "ZVD.LITE.90.260.1000.a3d" {
	  marking = "ZVD.LITE.90.260.1000"
	  name    = "Конвектор"

	  variable "H" {
	    value      = 90
	    expression = "90"
	  }
	  variable "B1" {
	    value      = 260
	    expression = "260"
	  }
	  variable "L1" {
	    value      = 1000
	    expression = "1000"
	  }
	  variable "A2" {
	    value      = 20
	    expression = "20"
	  }
	  variable "A1" {
	    value      = 70
	    expression = "H-A2"
	  }
	  variable "B5" {
	    value      = 256
	    expression = "B1-4"
	  }

	  instance {
	    name        = "Корпус короба"
	    designation = "ZVD.LITE.90.260.1000.004"
	    source      = "004 - Корпус короба.m3d"
	  }
	  instance {
	    name        = "Распорка"
	    designation = "ZVD.LITE.90.260.003"
	    source      = "003 - Распорка.m3d"
	  }
	  instance {
	    name        = "Распорка"
	    designation = "ZVD.LITE.90.260.003"
	    source      = "003 - Распорка.m3d"
	  }
	  instance {
	    name        = "Крепеж"
	    designation = "-"
	    source      = "-Крепеж.m3d"
	  }
	  instance {
	    name        = "Теплообменник"
	    designation = "120.300.700 Теплообменник"
	    source      = "005 - Теплообменник.m3d"
	  }
	}

	document "004 - Корпус короба.m3d" {
	  marking = "ZVD.LITE.90.260.1000.004"
	  name    = "Корпус короба"

	  variable "A1" {
	    value      = 70
	    expression = "70"
	  }
	}

	document "003 - Распорка.m3d" {
	  marking = "ZVD.LITE.90.260.003"
	  name    = "Распорка"

	  variable "B5" {
	    value      = 256
	    expression = "256"
	  }
	}

	document "-Крепеж.m3d" {
	  marking = "-"
	  name    = "Крепеж"

	  variable "B5" {
	    value      = 256
	    expression = "256"
	  }
	}

	document "005 - Теплообменник.m3d" {
	  marking = "120.300.700 Теплообменник"
	  name    = "Теплообменник"
	}

	document "004 - Корпус короба.cdw" {
	  name = "Корпус короба"
	}

	document "ZVD.LITE.90.260.1000 - Сборочный чертеж.cdw" {
	  name = "Сборочный чертеж"
	}

	document "DXF/Развертка корпуса короба.dxf" {
	}

	document "DXF/Развертка распорки.dxf" {
	}
`
