package sitter

import "github.com/tliron/commonlog"

const debugLevel = commonlog.Debug

// parserLog is the default logger for parsers. Output depends on the
// backend the program configures with commonlog.Configure.
var parserLog = commonlog.GetLogger("arbor.parser")

var queryLog = commonlog.GetLogger("arbor.query")
