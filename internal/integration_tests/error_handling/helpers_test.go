package integration_tests

import "github.com/vk/paramcascade/internal/model"

var params = model.Params{H: 160, B1: 350, L1: 2600}

const spacerHCL = `
	document "ZVD.LITE.90.260.1000.a3d" {
	  marking = "ZVD.LITE.90.260.1000"

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
	  variable "B5" {
	    value      = 256
	    expression = "B1-4"
	  }

	  instance {
	    name        = "Распорка"
	    designation = "ZVD.LITE.90.260.001"
	    source      = "001 - Распорка.m3d"
	  }
	}

	document "001 - Распорка.m3d" {
	  marking = "ZVD.LITE.90.260.001"
	  name    = "Распорка"

	  variable "B5" {
	    value      = 256
	    expression = "256"
	  }
	}
`
