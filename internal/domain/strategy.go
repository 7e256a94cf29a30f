package domain

// Stage is one step of the payment pipeline.
type Stage string

const (
	StagePreAuthorization         Stage = "pre-authorization"
	StagePreAuthorizationRecreate Stage = "pre-authorization-recreate"
	StagePreAuthorizationCancel   Stage = "pre-authorization-cancel"
	StageCaptureAndTransfer       Stage = "capture-and-transfer"
	StageTransfer                 Stage = "transfer"
	StageDepositCharge            Stage = "company-deposit-charge"
)

// StrategyName identifies how a stage is executed for a given context.
type StrategyName string

const (
	StrategyIndividualGatewayAuth     StrategyName = "individual-gateway-auth"
	StrategyCorporateDepositCharge    StrategyName = "corporate-deposit-charge"
	StrategyCorporatePostPayment      StrategyName = "corporate-post-payment"
	StrategyWaitListRedirect          StrategyName = "wait-list-redirect"
	StrategyValidationFailed          StrategyName = "validation-failed"
	StrategyCancelAndReauthIndividual StrategyName = "cancel-and-reauthorize-individual"
	StrategyCancelAndReauthCorporate  StrategyName = "cancel-and-reauthorize-corporate"
	StrategyReattachExistingPayment   StrategyName = "reattach-existing-payment"
	StrategyIndividualCancel          StrategyName = "individual-cancel"
	StrategyCorporateCancel           StrategyName = "corporate-cancel"
	StrategyCancelNotAllowed          StrategyName = "cancel-not-allowed"
	StrategyIndividualCapture         StrategyName = "individual-capture"
	StrategyCorporateCapture          StrategyName = "corporate-capture"
	StrategySameCompanyCommission     StrategyName = "same-company-commission"
	StrategyIndividualTransfer        StrategyName = "individual-transfer"
	StrategyCorporateWaitListRecord   StrategyName = "corporate-wait-list-record"
	StrategyDepositDebit              StrategyName = "deposit-debit"
)
